package shell

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

const epilog = `Type h(help) for help.
Type [cmd] -h for detail help of [cmd].
Type q(quit) or Ctrl-D to exit`

// newRootCmd builds the command tree for one input line. A fresh tree per
// line keeps flag values from leaking between commands. ran is set once a
// command body starts, which separates usage errors from command failures.
func (sh *Shell) newRootCmd(ctx context.Context, ran *bool) *cobra.Command {
	root := &cobra.Command{
		Use:           ">",
		Short:         "Browse and download from a directory-listing HTTP server",
		Long:          "A tool to browse and download files or directories from http.server style listings.\n\n" + epilog,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(sh.out)
	root.SetErr(sh.out)

	ls := &cobra.Command{
		Use:     "ls [dir]",
		Aliases: []string{"l"},
		Short:   "List files and directories of the current directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			l, err := sh.sess.List(ctx, dir)
			if err != nil {
				return err
			}
			sh.styles.renderListing(sh.out, l)
			return nil
		},
	}

	var recursive bool
	get := &cobra.Command{
		Use:     "get [-r] dest",
		Aliases: []string{"g"},
		Short:   "Get file or directory",
		Long: "Get file or directory.\n" +
			"dest is a file or directory; [int] represents the item displayed by the command ls",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			_, err := sh.sess.Download(ctx, args[0], recursive)
			return err
		},
	}
	get.Flags().BoolVarP(&recursive, "recursively", "r", false, "Get directory and its contents recursively")

	cd := &cobra.Command{
		Use:   "cd dir",
		Short: "Change the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			_, err := sh.sess.Navigate(ctx, args[0])
			return err
		},
	}

	pwd := &cobra.Command{
		Use:   "pwd",
		Short: "Print work directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			fmt.Fprintln(sh.out, sh.sess.Cwd())
			return nil
		},
	}

	pt := &cobra.Command{
		Use:     "print file",
		Aliases: []string{"p"},
		Short:   "Print file content",
		Long:    "Print file content. file must be a text file instead of a binary file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			*ran = true
			text, err := sh.sess.Print(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(sh.out, text)
			return nil
		},
	}

	root.AddCommand(ls, get, cd, pwd, pt)
	return root
}
