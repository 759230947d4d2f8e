package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jpalmerr/matrixsend/config"
	"github.com/jpalmerr/matrixsend/internal/matrix"
	"github.com/spf13/cobra"
)

// errNoRoom is returned when neither --roomid nor the store names a room.
var errNoRoom = errors.New("no room: pass --roomid or store room_id with init")

type sendOptions struct {
	message  string
	roomID   string
	path     string
	endpoint string
}

func newSendCmd(c *cli) *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "sendmsg",
		Short: "Send a message using stored credentials",
		Long: `Send one text message to a room using the credentials stored by init.

The room comes from --roomid, or the room_id in the credential store.

When a health endpoint is given with --endpoint, or stored with init, the
endpoint is polled first and the message is only sent once it reports
success. An unhealthy response or an endpoint that never comes up aborts
the send with exit code 1.

Example:
  matrixsend sendmsg --message "deploy finished"
  matrixsend sendmsg --roomid '!abc:example.org' --message "up" --endpoint http://localhost:8008/health`,
		RunE: c.run("sendmsg", func(ctx context.Context, cmd *cobra.Command) error {
			return c.runSend(ctx, cmd, &opts)
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.message, "message", "", "message to deliver (required)")
	flags.StringVar(&opts.roomID, "roomid", "", "room ID to deliver the message to")
	flags.StringVar(&opts.path, "path", ".", "credential store directory or file, as given to init")
	flags.StringVar(&opts.endpoint, "endpoint", "", "health endpoint to wait for before sending")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func (c *cli) runSend(ctx context.Context, cmd *cobra.Command, opts *sendOptions) error {
	creds, err := config.Load(opts.path)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return fmt.Errorf("%w, perhaps you should run init first", err)
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	roomID := opts.roomID
	if roomID == "" {
		roomID = creds.RoomID
	}
	if roomID == "" {
		return errNoRoom
	}

	if rawURL, ok := config.HealthEndpoint(creds, opts.endpoint); ok {
		ep, err := config.BuildEndpoint(creds.Health, rawURL)
		if err != nil {
			return fmt.Errorf("invalid health endpoint: %w", err)
		}
		if err := c.waitHealthy(ctx, cmd, ep, config.PollerOptions(creds.Health)...); err != nil {
			return err
		}
	}

	client, err := matrix.NewClient(creds.Homeserver,
		matrix.WithAccessToken(creds.AccessToken),
		matrix.WithUserAgent(userAgent()),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	eventID, err := client.SendText(ctx, roomID, opts.message)
	c.metrics.ObserveSend(err)
	if err != nil {
		c.logger.Error("send failed", "room_id", roomID, "error", err)
		if matrix.IsTokenRejected(err) {
			return fmt.Errorf("failed to send message: %w, stored access token was rejected, run init --force again", err)
		}
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.logger.Info("message sent",
		"room_id", roomID,
		"event_id", eventID,
		"user_id", creds.UserID,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Logged in using stored credentials. Sent message.")
	return nil
}
