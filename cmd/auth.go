package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sparkvibe/sparkvibe/internal/auth"
	"github.com/sparkvibe/sparkvibe/internal/output"
	"github.com/spf13/cobra"
)

var (
	flagName     string
	flagEmail    string
	flagPassword string
	flagAvatar   string
	flagYes      bool
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Long: `Create an account and sign in.

  sparkvibe signup --name Ann --email ann@x.com --password secret
  echo secret | sparkvibe signup --name Ann --email ann@x.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFrom(cmd)
		if err != nil {
			return err
		}
		sess, err := authSvc.SignUp(cmd.Context(), flagName, flagEmail, password)
		if err != nil {
			return err
		}
		return signedIn(sess, "Welcome, %s!")
	},
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFrom(cmd)
		if err != nil {
			return err
		}
		sess, err := authSvc.SignIn(cmd.Context(), flagEmail, password)
		if err != nil {
			return err
		}
		return signedIn(sess, "Signed in as %s.")
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := authSvc.Logout(); err != nil {
			return fmt.Errorf("signing out: %w", err)
		}
		output.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(sess)
			return nil
		}
		output.SessionInfo(sess)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your profile",
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change your display name or avatar URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		name, avatar := sess.Name, sess.Avatar
		if cmd.Flags().Changed("name") {
			name = flagName
		}
		if cmd.Flags().Changed("avatar") {
			avatar = flagAvatar
		}
		updated, err := authSvc.UpdateProfile(cmd.Context(), sess.ID, name, avatar)
		if err != nil {
			return err
		}
		if flagJSON {
			output.JSON(updated)
			return nil
		}
		output.Println("Profile updated.")
		return nil
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage your account",
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your account and everything it owns",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := currentUser()
		if err != nil {
			return err
		}
		if !flagYes {
			return fmt.Errorf("this deletes every card, category, badge and quiz result of %s; rerun with --yes", sess.Email)
		}
		if err := cascades.DeleteUser(cmd.Context(), sess.ID); err != nil {
			return err
		}
		output.Println("Account deleted.")
		return nil
	},
}

func signedIn(sess auth.Session, greeting string) error {
	if err := authSvc.Login(sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	if flagJSON {
		output.JSON(sess)
		return nil
	}
	output.Println(greeting, sess.Name)
	return nil
}

// passwordFrom returns --password, or the first line of stdin when unset.
func passwordFrom(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("password") {
		return flagPassword, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	signupCmd.Flags().StringVar(&flagName, "name", "", "Display name")
	signupCmd.Flags().StringVar(&flagEmail, "email", "", "Email address")
	signupCmd.Flags().StringVar(&flagPassword, "password", "", "Password (read from stdin when omitted)")

	signinCmd.Flags().StringVar(&flagEmail, "email", "", "Email address")
	signinCmd.Flags().StringVar(&flagPassword, "password", "", "Password (read from stdin when omitted)")

	profileUpdateCmd.Flags().StringVar(&flagName, "name", "", "New display name")
	profileUpdateCmd.Flags().StringVar(&flagAvatar, "avatar", "", "New avatar URL")
	profileCmd.AddCommand(profileUpdateCmd)

	accountDeleteCmd.Flags().BoolVar(&flagYes, "yes", false, "Confirm the deletion")
	accountCmd.AddCommand(accountDeleteCmd)

	rootCmd.AddCommand(signupCmd, signinCmd, signoutCmd, whoamiCmd, profileCmd, accountCmd)
}
