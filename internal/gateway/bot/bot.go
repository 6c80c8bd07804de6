package bot

import (
	"context"
	"encoding/json"
	"time"

	logging "github.com/inconshreveable/log15"
	"github.com/mattermost/mattermost-server/v6/model"
	"github.com/pkg/errors"

	"github.com/Xausdorf/weighted-poll/internal/config"
	"github.com/Xausdorf/weighted-poll/internal/domain"
)

const (
	maxRetries    = 5
	retryInterval = 3 * time.Second
)

// PollingBot answers poll commands posted to the channels its Mattermost user can read.
type PollingBot struct {
	cfg             config.MattermostConfig
	client          *model.Client4
	webSocketClient *model.WebSocketClient
	user            *model.User
	team            *model.Team
	commands        *Commands
	log             logging.Logger
}

func NewPollingBot(cfg config.MattermostConfig, polls PollService, log logging.Logger) (*PollingBot, error) {
	var bot PollingBot

	bot.cfg = cfg
	bot.log = log.New("module", "mattermost")
	bot.client = model.NewAPIv4Client(bot.cfg.Server)
	bot.client.SetToken(bot.cfg.Token)

	user, _, err := bot.client.GetMe("")
	if err != nil {
		return nil, errors.Wrap(err, "could not log in")
	}
	if err := checkBotUser(cfg.UserName, user.Username); err != nil {
		bot.log.Warn("unexpected mattermost user", "err", err)
	}
	bot.log.Info("logged in to mattermost", "user", user.Username)
	bot.user = user

	team, _, err := bot.client.GetTeamByName(cfg.TeamName, "")
	if err != nil {
		return nil, errors.Wrapf(err, "could not find team %q", cfg.TeamName)
	}
	bot.log.Info("team found", "team", team.Name)
	bot.team = team

	bot.commands = NewCommands(polls)

	return &bot, nil
}

// Listen handles websocket events until ctx is done.
func (b *PollingBot) Listen(ctx context.Context) error {
	var err error
	for range maxRetries {
		b.webSocketClient, err = model.NewWebSocketClient4(b.cfg.Server, b.client.AuthToken)
		if err != nil {
			b.log.Warn("could not connect mattermost websocket, retrying", "err", err)
			select {
			case <-time.After(retryInterval):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		b.log.Info("mattermost websocket succesfully connected")

		b.webSocketClient.Listen()

		b.log.Info("polling bot listening now")
		for {
			select {
			case event, ok := <-b.webSocketClient.EventChannel:
				if !ok {
					return errors.New("mattermost websocket closed")
				}
				go b.handleWebSocketEvent(ctx, event)
			case <-ctx.Done():
				return nil
			}
		}
	}
	return errors.Wrap(err, "could not connect mattermost websocket, max retries exceeded")
}

// checkBotUser reports a token that logs in as another user than configured.
func checkBotUser(expected, actual string) error {
	if expected == "" || expected == actual {
		return nil
	}
	return errors.Errorf("token belongs to %q, expected bot user %q", actual, expected)
}

func (b *PollingBot) Close() {
	if b.webSocketClient != nil {
		b.log.Info("closing mattermost websocket connection")
		b.webSocketClient.Close()
	}
}

func (b *PollingBot) handleWebSocketEvent(ctx context.Context, event *model.WebSocketEvent) {
	if event.EventType() != model.WebsocketEventPosted {
		return
	}

	post := &model.Post{}
	eventData, ok := event.GetData()["post"].(string)
	if !ok {
		b.log.Debug("could not cast event data to string")
		return
	}
	if err := json.Unmarshal([]byte(eventData), &post); err != nil {
		b.log.Debug("could not unmarshal event to *model.Post", "err", err)
		return
	}

	if post.UserId == b.user.Id {
		return
	}

	b.handlePost(ctx, post)
}

func (b *PollingBot) handlePost(ctx context.Context, post *model.Post) {
	reply, ok := b.commands.Handle(ctx, domain.Principal(post.UserId), post.Message)
	if !ok {
		return
	}
	b.log.Debug("handled post", "msg", post.Message, "user", post.UserId)
	b.Respond(ctx, post, reply)
}

func (b *PollingBot) Respond(_ context.Context, post *model.Post, msg string) {
	resp := &model.Post{}
	resp.ChannelId = post.ChannelId
	resp.Message = msg
	resp.RootId = post.Id

	if _, _, err := b.client.CreatePost(resp); err != nil {
		b.log.Error("could not respond to post", "post", post.Id, "err", err)
	}
}
