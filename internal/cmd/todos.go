package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xcawolfe-amzn/cc-sessions/internal/state"
	"github.com/xcawolfe-amzn/cc-sessions/internal/style"
	"github.com/xcawolfe-amzn/cc-sessions/internal/workspace"
)

var todosCmd = &cobra.Command{
	Use:     "todos",
	GroupID: GroupWorkflow,
	Short:   "Inspect or clear the active todo list",
	RunE:    requireSubcommand,
}

var todosClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear restored todos and return to discussion mode",
	Long: `clear dismisses a todo list the bookkeeper restored from the stash
(spec §4.F: when every active todo is completed outside the
Task-completion protocol and a stashed list exists, the stash is restored
and the restoration is flagged for exactly one cc-sessions todos clear
call).

Examples:
  cc-sessions todos clear`,
	RunE: runTodosClear,
}

func init() {
	todosCmd.AddCommand(todosClearCmd)
	rootCmd.AddCommand(todosCmd)
}

func runTodosClear(cmd *cobra.Command, args []string) error {
	root, err := workspace.FindFromCwdOrError()
	if err != nil {
		return err
	}

	states := state.New(root)
	var cleared bool
	err = states.Edit(func(st *state.State) error {
		if !st.Flags.APITodosClear {
			return nil
		}
		cleared = true
		st.Flags.APITodosClear = false
		st.Todos.Active = nil
		st.Mode = state.ModeDiscussion
		st.CurrentTask = nil
		st.ActiveProtocol = state.ProtocolNone
		return nil
	})
	if err != nil {
		return err
	}

	if !cleared {
		fmt.Println(style.Dim.Render("no restored todos to clear"))
		return nil
	}

	fmt.Printf("%s Cleared restored todos, back in discussion mode\n", style.Good.Render("✓"))
	return nil
}
