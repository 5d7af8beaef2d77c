package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotAPI is the subset of the Bot API client used by the transport.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	Self() tgbotapi.User
}

// BotFactory creates a BotAPI for a token.
type BotFactory func(token string, debug bool) (BotAPI, error)

type apiWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *apiWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *apiWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *apiWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *apiWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *apiWrapper) Self() tgbotapi.User {
	return w.bot.Self
}

// DefaultBotFactory authenticates against the public Bot API.
func DefaultBotFactory(token string, debug bool) (BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = debug
	return &apiWrapper{bot: bot}, nil
}
