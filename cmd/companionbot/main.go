package main

import "github.com/EgorLis/tgrelaybot/internal/app"

func main() {
	app.Execute(app.NewCommand("companionbot", "Telegram companion chat bot with a music queue", app.Companion))
}
