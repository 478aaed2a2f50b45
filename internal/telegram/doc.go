// Package telegram: клиент Telegram Bot API для ботов этого репозитория.
// Обёртка над go-telegram-bot-api: long-poll getUpdates с экспоненциальным
// backoff при сетевых ошибках и высокоуровневые методы:
//
//   - SendText, Reply, SendPhoto, ReplyPhoto, SendAudio, Typing;
//   - IsAdmin, Ban, Kick (ban + unban), Mute (запрет на сообщения).
//
// События (колбэки поля структуры):
//   - OnConnected, OnMessage, OnDisconnected, OnError.
//
// Входящие апдейты приводятся к Message: плоской структуре, с которой
// работает роутер команд (bot): чат, автор, команда и аргументы, на чьё
// сообщение ответили, упомянут ли бот.
//
// Пример:
//
//	tg, err := telegram.New(telegram.Config{Token: token}, log)
//	if err != nil { log.Fatal(err) }
//	tg.OnMessage = func(m *telegram.Message) { fmt.Println(m.Text) }
//	if err := tg.Connect(ctx); err != nil { log.Fatal(err) }
//	defer tg.Disconnect()
package telegram
