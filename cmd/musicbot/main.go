package main

import "github.com/EgorLis/tgrelaybot/internal/app"

func main() {
	app.Execute(app.NewCommand("musicbot", "Telegram group music queue bot", app.Music))
}
