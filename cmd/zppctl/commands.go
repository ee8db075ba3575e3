package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/matheus3301/zpp/internal/api"
	"github.com/matheus3301/zpp/internal/session"
	"github.com/spf13/cobra"
)

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Status(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				printStatus(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func printStatus(w io.Writer, s *api.StatusResponse) {
	fmt.Fprintf(w, "Session:  %s\n", s.Session)
	fmt.Fprintf(w, "Realm:    %s\n", s.Realm)
	fmt.Fprintf(w, "Email:    %s\n", s.Email)
	fmt.Fprintf(w, "Status:   %s\n", s.Status)
	fmt.Fprintf(w, "Queue:    %s\n", s.QueueID)
	fmt.Fprintf(w, "Uptime:   %s\n", (time.Duration(s.UptimeMs) * time.Millisecond).Truncate(time.Second))
	fmt.Fprintf(w, "Users:    %d\n", s.Users)
	fmt.Fprintf(w, "Messages: %d (%d sending)\n", s.MessageCount, s.PendingSends)
	fmt.Fprintf(w, "Unsent:   %d\n", s.Unsent)
}

func sendCmd(opts *options) *cobra.Command {
	var req api.StartRequest
	cmd := &cobra.Command{
		Use:   "send <content...>",
		Short: "Send a message to a stream topic or to users",
		Long: "Send composes and sends a message in one step. Content of \"-\" is read from stdin.\n" +
			"Use --stream and --topic for a stream message or --to for a private one.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := strings.Join(args, " ")
			if content == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				content = string(data)
			}
			req.Content = content
			req.Trigger = "zppctl"
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Send(ctx, &req)
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				return reportSend(cmd.OutOrStdout(), resp)
			})
		},
	}
	cmd.Flags().StringVar(&req.Stream, "stream", "", "stream name")
	cmd.Flags().StringVar(&req.Topic, "topic", "", "topic")
	cmd.Flags().StringVar(&req.PrivateRecipient, "to", "", "comma separated recipient emails")
	cmd.MarkFlagsMutuallyExclusive("stream", "to")
	cmd.MarkFlagsOneRequired("stream", "to")
	return cmd
}

// reportSend prints the outcome and turns a failed send into an error.
func reportSend(w io.Writer, resp *api.SendResponse) error {
	switch {
	case resp.Error != "":
		return errors.New(resp.Error)
	case resp.Blocked:
		return errors.New(describeBlock(resp.View))
	case resp.Sent:
		fmt.Fprintf(w, "sent: id %d\n", resp.ServerID)
	case resp.Echoed:
		fmt.Fprintf(w, "sending: local id %s\n", resp.LocalID)
	default:
		fmt.Fprintln(w, "nothing to send")
	}
	return nil
}

func describeBlock(v *api.ComposeView) string {
	if v == nil {
		return "message not sent"
	}
	b := v.Banners
	switch {
	case b.Error != nil:
		return b.Error.Text
	case len(b.Wildcard) > 0:
		return fmt.Sprintf("message mentions everyone in #%s; run `zppctl compose confirm`", b.Wildcard[0].StreamName)
	case len(b.Announce) > 0:
		return fmt.Sprintf("#%s is an announcement stream; run `zppctl compose confirm`", b.Announce[0].StreamName)
	case b.NotSubscribed != "":
		return fmt.Sprintf("you are not subscribed to #%s", b.NotSubscribed)
	}
	return "message not sent"
}

func composeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Inspect or act on the open compose box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				v, err := c.Compose(ctx)
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), v)
				}
				printCompose(cmd.OutOrStdout(), v)
				return nil
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "confirm",
			Short: "Send despite the wildcard or announce warning",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
					v, err := c.Compose(ctx)
					if err != nil {
						return err
					}
					confirm := c.ConfirmWildcard
					if len(v.Banners.Wildcard) == 0 {
						confirm = c.ConfirmAnnounce
					}
					resp, err := confirm(ctx)
					if err != nil {
						return err
					}
					return reportSend(cmd.OutOrStdout(), resp)
				})
			},
		},
		&cobra.Command{
			Use:   "preview [content...]",
			Short: "Render content, or the open draft, through the server",
			RunE: func(cmd *cobra.Command, args []string) error {
				content := strings.Join(args, " ")
				if content == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return err
					}
					content = string(data)
				}
				return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
					resp, err := c.Preview(ctx, content)
					if err != nil {
						return err
					}
					if opts.json {
						return outputJSON(cmd.OutOrStdout(), resp)
					}
					printPreview(cmd.OutOrStdout(), resp)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cancel",
			Short: "Close the compose box",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
					_, err := c.CancelCompose(ctx)
					return err
				})
			},
		},
	)
	return cmd
}

func printPreview(w io.Writer, resp *api.PreviewResponse) {
	fmt.Fprintln(w, strings.TrimRight(resp.Rendered, "\n"))
	if !resp.LocalEcho {
		fmt.Fprintln(w, "(not echoed locally: shown once the server accepts it)")
	}
}

func printCompose(w io.Writer, v *api.ComposeView) {
	if !v.Open {
		fmt.Fprintln(w, "compose box closed")
		return
	}
	st := v.State
	if st.Type == "private" {
		fmt.Fprintf(w, "To:      %s\n", st.PrivateRecipient)
	} else {
		fmt.Fprintf(w, "Stream:  #%s > %s\n", st.StreamName, st.Topic)
	}
	fmt.Fprintf(w, "Status:  %s (send enabled: %v)\n", v.Status, v.Banners.SendEnabled)
	if v.Uploads > 0 {
		fmt.Fprintf(w, "Uploads: %d in progress\n", v.Uploads)
	}
	if v.Banners.Error != nil || len(v.Banners.Wildcard) > 0 || len(v.Banners.Announce) > 0 || v.Banners.NotSubscribed != "" {
		fmt.Fprintf(w, "Banner:  %s\n", describeBlock(v))
	}
	fmt.Fprintf(w, "\n%s\n", st.Content)
}

func presenceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "presence [email]",
		Short: "List user presence, or show one user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				var users []api.PresenceEntry
				if len(args) == 1 {
					u, err := c.UserPresence(ctx, &api.GetPresenceRequest{Email: args[0]})
					if err != nil {
						return err
					}
					users = []api.PresenceEntry{*u}
				} else {
					resp, err := c.Presence(ctx)
					if err != nil {
						return err
					}
					users = resp.Users
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), users)
				}
				for _, u := range users {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8s %-30s %s\n", u.Status, u.Email, u.FullName)
				}
				return nil
			})
		},
	}
}

func messagesCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List messages sent from this session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Messages(ctx, limit)
				if err != nil {
					return err
				}
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), resp.Messages)
				}
				for _, m := range resp.Messages {
					fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of messages")
	return cmd
}

func formatMessage(m api.Message) string {
	where := "#" + m.Stream + " > " + m.Topic
	if m.Type == "private" {
		where = "pm:" + m.Recipient
	}
	line := fmt.Sprintf("%-8s %-7s %s: %s", m.LocalID, m.Status, where, firstLine(m.Content))
	if m.Error != "" {
		line += " (" + m.Error + ")"
	}
	return line
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

func resendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resend <local-id>",
		Short: "Retry a message that failed to send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				resp, err := c.Resend(ctx, args[0])
				if err != nil {
					return err
				}
				return reportSend(cmd.OutOrStdout(), resp)
			})
		},
	}
}

func unsentCmd(opts *options) *cobra.Command {
	show := func(cmd *cobra.Command, v *api.UnsentView) error {
		if opts.json {
			return outputJSON(cmd.OutOrStdout(), v)
		}
		if !v.Visible || v.Current == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "no unsent messages")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "on offer (%d more after it):\n%s\n", v.Remaining, v.Current.Content)
		return nil
	}
	cmd := &cobra.Command{
		Use:   "unsent",
		Short: "Show the unsent message on offer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
				v, err := c.Unsent(ctx)
				if err != nil {
					return err
				}
				return show(cmd, v)
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "send",
			Short: "Send the unsent message on offer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
					resp, err := c.ConfirmUnsent(ctx)
					if err != nil {
						return err
					}
					return reportSend(cmd.OutOrStdout(), resp)
				})
			},
		},
		&cobra.Command{
			Use:   "discard",
			Short: "Discard the unsent message on offer",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withClient(cmd, opts, func(ctx context.Context, c *api.Client) error {
					v, err := c.CancelUnsent(ctx)
					if err != nil {
						return err
					}
					return show(cmd, v)
				})
			},
		},
	)
	return cmd
}

func watchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [namespace...]",
		Short: "Stream daemon events until interrupted",
		Long:  "Namespaces filter by event kind prefix, e.g. compose, message, presence, unsent, events.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect(opts)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return c.Watch(ctx, args, func(e *api.Event) error {
				if opts.json {
					return outputJSON(cmd.OutOrStdout(), e)
				}
				ts := time.UnixMilli(e.OccurredAtUnixMs).Format("15:04:05")
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %-22s %s\n", ts, e.Kind, e.Payload)
				return err
			})
		},
	}
}

func sessionsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := session.List()
			if err != nil {
				return err
			}
			if opts.json {
				return outputJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions found.")
				return nil
			}
			for _, s := range list {
				state := "stopped"
				if s.HasSocket {
					state = "running"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s (%s)\n", s.Name, s.Path, state)
			}
			return nil
		},
	}
}
