package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reunite/hub/internal/repository"
	"github.com/reunite/hub/internal/service"
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an API user and print its key",
	Long: `Create a user and print the generated API key. The key is only shown once;
the database stores its hash.

Examples:
  hubctl create-user --email ops@example.org --name "Control room" --admin`,
	Args: cobra.NoArgs,
	RunE: runCreateUser,
}

func init() {
	rootCmd.AddCommand(createUserCmd)

	createUserCmd.Flags().String("email", "", "User email (required)")
	createUserCmd.Flags().String("name", "", "Display name (required)")
	createUserCmd.Flags().Bool("admin", false, "Grant access to the admin routes")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("name")
}

func runCreateUser(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := connect(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	users := service.NewUsersService(repository.NewUsersRepository(e.db))

	user, key, err := users.CreateUser(ctx,
		mustGetString(cmd, "email"), mustGetString(cmd, "name"), mustGetBool(cmd, "admin"))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:    %s (%s)\n", user.Email, user.ID)
	fmt.Fprintf(out, "Admin:   %t\n", user.IsAdmin)
	fmt.Fprintf(out, "API key: %s\n", key)

	return nil
}
