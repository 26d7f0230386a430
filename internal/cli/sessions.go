package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tansuo/paperchat/internal/convo"
	"github.com/tansuo/paperchat/internal/render"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage conversations",
	}

	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsNewCmd())
	cmd.AddCommand(newSessionsRenameCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	cmd.AddCommand(newSessionsExportCmd())
	return cmd
}

// withConvo loads the conversation store, runs fn, and tears down.
func withConvo(cmd *cobra.Command, fn func(*app, *convo.Store) error) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	cs := convo.New(app.db, app.gateway, log)
	if err := cs.Load(cmd.Context()); err != nil {
		return err
	}
	return fn(app, cs)
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConvo(cmd, func(_ *app, cs *convo.Store) error {
				render.NewTerminal(os.Stdout).SessionList(cs.Sessions(), cs.ActiveID())
				return nil
			})
		},
	}
}

func newSessionsNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create a conversation and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConvo(cmd, func(_ *app, cs *convo.Store) error {
				sess, err := cs.Create(cmd.Context(), strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Println(sess.ID)
				return nil
			})
		},
	}
}

func newSessionsRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id-prefix> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConvo(cmd, func(_ *app, cs *convo.Store) error {
				id, err := matchSession(cs, args[0])
				if err != nil {
					return err
				}
				return cs.Rename(id, strings.Join(args[1:], " "))
			})
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id-prefix>",
		Short: "Delete a conversation and its transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConvo(cmd, func(_ *app, cs *convo.Store) error {
				id, err := matchSession(cs, args[0])
				if err != nil {
					return err
				}
				if !force && !confirm(fmt.Sprintf("delete conversation %s? this cannot be undone", shortPrefix(id))) {
					fmt.Println("kept")
					return nil
				}
				return cs.Delete(cmd.Context(), id)
			})
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip the confirmation prompt")
	return cmd
}

func newSessionsExportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export <id-prefix>",
		Short: "Export a conversation transcript as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withConvo(cmd, func(_ *app, cs *convo.Store) error {
				id, err := matchSession(cs, args[0])
				if err != nil {
					return err
				}
				if err := cs.SwitchTo(cmd.Context(), id); err != nil {
					return err
				}
				sess, ok := cs.ActiveSession()
				if !ok {
					return errors.New("conversation not found")
				}

				path := out
				if path == "" {
					path = shortPrefix(id) + ".html"
				}
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()

				if err := render.ExportHTML(f, sess, cs.Messages()); err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default <id>.html)")
	return cmd
}

func matchSession(cs *convo.Store, prefix string) (string, error) {
	var match string
	for _, s := range cs.Sessions() {
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one conversation", prefix)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation matching %q", prefix)
	}
	return match, nil
}

func shortPrefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func confirm(question string) bool {
	fmt.Printf("%s (y/N) ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
