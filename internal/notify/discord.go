package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordSink delivers notifications to a single Discord channel.
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordSink creates a Discord sink. Call Start before sending.
func NewDiscordSink(token, channelID string, logger *zap.Logger) (*DiscordSink, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord channel id is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	return &DiscordSink{session: session, channelID: channelID, logger: logger}, nil
}

// Start opens the Discord gateway connection
func (d *DiscordSink) Start() error {
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord connection: %w", err)
	}

	d.logger.Info("Discord sink ready",
		zap.String("username", d.session.State.User.Username))
	return nil
}

// Stop closes the Discord gateway connection
func (d *DiscordSink) Stop() error {
	return d.session.Close()
}

func (d *DiscordSink) Name() string {
	return "discord"
}

func (d *DiscordSink) Send(n Notification) error {
	_, err := d.session.ChannelMessageSend(d.channelID, kindPrefix(n.Kind)+n.Message)
	return err
}
