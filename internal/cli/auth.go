package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Credential management",
	Long:  "Store, inspect and remove the login credentials used by run",
}

var authSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Store credentials for a profile",
	Long: `Store the username and password for --profile in the system keyring,
falling back to an encrypted file when no keyring is available.`,
	RunE: runAuthSave,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove stored credentials",
	Long:  "Delete stored credentials for the current or specified profile",
	RunE:  runAuthDelete,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored credential status",
	Long:  "Display whether credentials are stored for a profile, without the password",
	RunE:  runAuthStatus,
}

var authProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List credential profiles",
	Long:  "Display all stored credential profiles",
	RunE:  runAuthProfiles,
}

var (
	authUsername      string
	authPassword      string
	authPasswordStdin bool
	authServer        string
)

func init() {
	authSaveCmd.Flags().StringVarP(&authUsername, "username", "u", "", "Login username (default from config)")
	authSaveCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Login password")
	authSaveCmd.Flags().BoolVar(&authPasswordStdin, "password-stdin", false, "Read the password from stdin")
	authSaveCmd.Flags().StringVar(&authServer, "server", "", "Server URL to remember with the credential")

	authCmd.AddCommand(authSaveCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authProfilesCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSave(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	password := authPassword
	if authPasswordStdin {
		read, err := readPassword(os.Stdin)
		if err != nil {
			return out.WriteError("auth.save", utils.NewCLIError(utils.ErrCodeInvalidArgument,
				fmt.Sprintf("failed to read password from stdin: %v", err)).Build())
		}
		password = read
	}

	mgr, err := newAuthManager()
	if err != nil {
		return out.WriteErr("auth.save", err)
	}
	if warning := mgr.GetStorageWarning(); warning != "" {
		out.Log("%s", warning)
	}

	cred := types.StoredCredential{
		Profile:   flags.Profile,
		ServerURL: strings.TrimRight(authServer, "/"),
		Username:  firstNonEmpty(authUsername, getConfig().Username),
		Password:  password,
	}
	if err := mgr.SaveCredential(cred); err != nil {
		return out.WriteErr("auth.save", err)
	}

	out.Log("Credentials saved for profile %s (%s)", flags.Profile, mgr.GetStorageBackend())
	return out.WriteSuccess("auth.save", mgr.Status(flags.Profile))
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	mgr, err := newAuthManager()
	if err != nil {
		return out.WriteErr("auth.delete", err)
	}
	if err := mgr.DeleteCredential(flags.Profile); err != nil {
		return out.WriteErr("auth.delete", err)
	}

	out.Log("Credentials removed for profile %s", flags.Profile)
	return out.WriteSuccess("auth.delete", map[string]string{
		"profile": flags.Profile,
		"status":  "deleted",
	})
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	mgr, err := newAuthManager()
	if err != nil {
		return out.WriteErr("auth.status", err)
	}
	return out.WriteSuccess("auth.status", mgr.Status(flags.Profile))
}

func runAuthProfiles(cmd *cobra.Command, args []string) error {
	flags := GetGlobalFlags()
	out := NewOutputWriter(flags.OutputFormat, flags.Quiet, flags.Verbose)

	mgr, err := newAuthManager()
	if err != nil {
		return out.WriteErr("auth.profiles", err)
	}
	profiles, err := mgr.ListProfiles()
	if err != nil {
		return out.WriteError("auth.profiles", utils.NewCLIError(utils.ErrCodeIO,
			fmt.Sprintf("failed to list profiles: %v", err)).Build())
	}
	return out.WriteSuccess("auth.profiles", types.ProfileList{
		Profiles: profiles,
		Backend:  mgr.GetStorageBackend(),
	})
}

// readPassword returns the first line of r without its line ending
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
