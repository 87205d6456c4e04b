package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	authEmail    string
	authPassword string
	authName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session",
	RunE:  runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email")
		c.Flags().StringVar(&authPassword, "password", "", "account password (default $HELPDESK_PASSWORD)")
		_ = c.MarkFlagRequired("email")
	}
	registerCmd.Flags().StringVar(&authName, "name", "", "display name")
}

func password() string {
	if authPassword != "" {
		return authPassword
	}
	return os.Getenv("HELPDESK_PASSWORD")
}

func runLogin(cmd *cobra.Command, args []string) error {
	app, err := newClient(cmd)
	if err != nil {
		return err
	}
	sess, err := app.Session.Login(cmd.Context(), authEmail, password())
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", sess.User.DisplayName())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	app, err := newClient(cmd)
	if err != nil {
		return err
	}
	var name *string
	if authName != "" {
		name = &authName
	}
	u, err := app.Session.Register(cmd.Context(), authEmail, password(), name)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", u.Email)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	app, err := newClient(cmd)
	if err != nil {
		return err
	}
	app.Session.Logout()
	fmt.Fprintln(cmd.OutOrStdout(), "logged out")
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	app, err := authedClient(cmd)
	if err != nil {
		return err
	}
	sess := app.Session.Context().Snapshot()
	role := "user"
	if sess.User.IsAdmin {
		role = "operator"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", sess.User.DisplayName(), sess.User.Email, role)
	if sess.ExpiresAt != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "session expires %s\n", sess.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
