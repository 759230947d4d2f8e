package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jpalmerr/matrixsend"
	"github.com/jpalmerr/matrixsend/config"
	"github.com/jpalmerr/matrixsend/internal/matrix"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	defaultDeviceName = "matrixsend"
	passwordEnv       = "MATRIXSEND_PASSWORD"
)

type initOptions struct {
	homeserver string
	userID     string
	deviceName string
	password   string
	path       string
	roomID     string
	endpoint   string
	force      bool
}

func newInitCmd(c *cli) *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Log in with a password and store the session",
		Long: `Log in to a Matrix homeserver with a password and store the resulting
access token, so later sends need no password.

The password is taken from --password, then the MATRIXSEND_PASSWORD
environment variable, then a hidden prompt when stdin is a terminal, and
finally a single line read from stdin.

An existing credential store is only replaced with --force. The store is
written with owner-only permissions.

Example:
  matrixsend init --homeserver matrix.example.org --userid @bot:example.org
  matrixsend init --homeserver https://matrix.example.org --userid @bot:example.org \
    --roomid '!abc:example.org' --endpoint http://localhost:8008/health --path ~/.matrixsend`,
		RunE: c.run("init", func(ctx context.Context, cmd *cobra.Command) error {
			return c.runInit(ctx, cmd, &opts)
		}),
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.homeserver, "homeserver", "", "Matrix homeserver (https:// is assumed when no scheme is given)")
	flags.StringVar(&opts.userID, "userid", "", "user ID messages originate from, e.g. @bot:example.org")
	flags.StringVar(&opts.deviceName, "device-name", defaultDeviceName, "device name associated with the session")
	flags.StringVar(&opts.password, "password", "", "account password (prompted for when omitted)")
	flags.StringVar(&opts.path, "path", ".", "credential store directory or file (.json, .yaml, .toml)")
	flags.StringVar(&opts.roomID, "roomid", "", "store a default room ID for sendmsg")
	flags.StringVar(&opts.endpoint, "endpoint", "", "store a health endpoint sendmsg waits for")
	flags.BoolVar(&opts.force, "force", false, "overwrite an existing credential store")
	_ = cmd.MarkFlagRequired("homeserver")
	_ = cmd.MarkFlagRequired("userid")

	return cmd
}

func (c *cli) runInit(ctx context.Context, cmd *cobra.Command, opts *initOptions) error {
	exists, err := config.Exists(opts.path)
	if err != nil {
		return err
	}
	if exists && !opts.force {
		return fmt.Errorf("%w at %s, requires --force", config.ErrExists, opts.path)
	}

	homeserver, err := matrix.NormalizeHomeserver(opts.homeserver)
	if err != nil {
		return fmt.Errorf("invalid --homeserver: %w", err)
	}
	if opts.endpoint != "" {
		if _, err := matrixsend.NewEndpoint(opts.endpoint); err != nil {
			return fmt.Errorf("invalid --endpoint: %w", err)
		}
	}

	password, err := readPassword(cmd, opts.password)
	if err != nil {
		return err
	}

	client, err := matrix.NewClient(homeserver, matrix.WithUserAgent(userAgent()))
	if err != nil {
		return err
	}
	defer client.Close()

	session, err := client.Login(ctx, opts.userID, password, opts.deviceName)
	c.metrics.ObserveLogin(err)
	if err != nil {
		c.logger.Error("login failed",
			"homeserver", homeserver,
			"user_id", opts.userID,
			"error", err,
		)
		return fmt.Errorf("failed to log in as %s on %s: %w", opts.userID, homeserver, err)
	}

	creds := &config.Credentials{
		Homeserver:  client.Homeserver(),
		UserID:      session.UserID,
		DeviceID:    session.DeviceID,
		AccessToken: session.AccessToken,
		RoomID:      strings.TrimSpace(opts.roomID),
		Endpoint:    strings.TrimSpace(opts.endpoint),
	}
	if creds.UserID == "" {
		creds.UserID = opts.userID
	}
	if err := creds.Validate(); err != nil {
		return fmt.Errorf("login returned unusable credentials: %w", err)
	}

	path, err := config.Save(opts.path, creds, opts.force)
	if err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	c.logger.Info("credentials stored",
		"path", path,
		"user_id", creds.UserID,
		"device_id", creds.DeviceID,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Logged in using a password. Credentials were stored.")
	return nil
}

// readPassword resolves the login password: flag, environment, terminal
// prompt, then one line of stdin.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if len(pw) == 0 {
			return "", errors.New("password is required")
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", fmt.Errorf("password is required (use --password, %s or stdin)", passwordEnv)
	}
	return pw, nil
}
