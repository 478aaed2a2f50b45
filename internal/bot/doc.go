// Package bot: «склейка» вокруг telegram, queue, playback, media и
// conversation: прикладной бот для групповых чатов Telegram. Бот:
//   - принимает сообщения из long-poll и раскладывает их по очередям чатов
//     (внутри чата строго по порядку, разные чаты параллельно);
//   - обрабатывает команды (/start, /help, /play, /skip, /stop, /queue,
//     /clear, /ban, /kick, /mute);
//   - ведёт очередь треков чата и запускает цикл «проигрывания»;
//   - (опционально) отвечает на обычные сообщения через языковую модель
//     и публикует события очереди в live-ленту.
//
// Жизненный цикл:
//   - Создать бота через New(messenger, resolver, log, playbackCfg).
//   - Подключить источник SetTelegram(tg), для компаньона SetConversation(...),
//     для ленты: SetFeed(hub).
//   - Запустить Start() и остановить Stop().
//
// Пример:
//
//	tg, _ := telegram.New(cfg.Telegram, log)
//	b := bot.New(tg, media.NewYTDLP("yt-dlp", log), log, playback.DefaultConfig())
//	b.SetTelegram(tg)
//
//	if err := b.Start(); err != nil { log.Error(...) }
//	defer b.Stop()
//	<-ctx.Done()
package bot
