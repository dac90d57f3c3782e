package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/llehouerou/lineup/internal/lastfm"
	"github.com/llehouerou/lineup/internal/log"
	"github.com/llehouerou/lineup/internal/state"
)

const authTimeout = 5 * time.Minute

var errLastfmNotConfigured = errors.New("last.fm is not configured: set [lastfm] api_key and api_secret")

func newLastfmCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lastfm",
		Short: "Manage Last.fm scrobbling",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "link",
			Short: "Authorize lineup to scrobble to your Last.fm account",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLastfmLink(cmd, root)
			},
		},
		&cobra.Command{
			Use:   "retry",
			Short: "Resubmit scrobbles that failed earlier",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runLastfmRetry(cmd, root)
			},
		},
	)
	return cmd
}

func runLastfmLink(cmd *cobra.Command, root *rootOptions) error {
	cfg := root.cfg
	if !cfg.HasLastfmConfig() {
		return errLastfmNotConfigured
	}
	store, err := state.Open(cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer store.Close()

	client := lastfm.New(cfg.Lastfm.APIKey, cfg.Lastfm.APISecret)
	server, err := lastfm.StartAuthServer(lastfm.DefaultCallbackAddr)
	if err != nil {
		return err
	}
	defer server.Shutdown()

	token, err := client.GetToken()
	if err != nil {
		return err
	}
	authURL := client.AuthURL(token, server.CallbackURL())
	fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize lineup:\n  %s\n", authURL)
	if err := lastfm.OpenBrowser(authURL); err != nil {
		logger := log.WithComponent("cli")
		logger.Debug().Err(err).Msg("could not open browser")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), authTimeout)
	defer cancel()
	if _, err := server.WaitForToken(ctx); err != nil {
		return fmt.Errorf("waiting for authorization: %w", err)
	}

	username, sessionKey, err := client.GetSession(token)
	if err != nil {
		return err
	}
	if err := store.SaveLastfmSession(username, sessionKey); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Linked Last.fm account %s\n", username)
	return nil
}

func runLastfmRetry(cmd *cobra.Command, root *rootOptions) error {
	if !root.cfg.HasLastfmConfig() {
		return errLastfmNotConfigured
	}
	store, err := state.Open(root.cfg.State.Path)
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer store.Close()

	tracker := newTracker(root, store, false)
	if tracker == nil {
		return errors.New("no linked Last.fm session: run 'lineup lastfm link'")
	}
	defer tracker.Close()

	ok, failed, err := tracker.RetryPending()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "resubmitted %d scrobbles, %d still pending\n", ok, failed)
	return nil
}
