package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kobodown/internal/kobo"
)

const captchaGuidance = `
Open https://authorize.kobo.com/signin in a private/incognito window in
your browser, wait until the page loads (do not log in!), then open the
developer tools (F12 in Firefox/Chrome), select the console tab, paste
the following code there, and press Enter in the browser.

var newCaptchaDiv = document.createElement( "div" );
newCaptchaDiv.id = "new-hcaptcha-container";
document.getElementById( "hcaptcha-container" ).insertAdjacentElement( "afterend", newCaptchaDiv );
hcaptcha.render( newCaptchaDiv.id, {
	sitekey: "51a1773a-a9ae-4992-a768-e3b8d87355e8",
	callback: function( response ) { console.log( "Captcha response:" ); console.log( response ); }
} );

A captcha should show up below the sign-in form. Once you solve it, its
response is written below the pasted code in the browser's console. Copy
the response (the line below "Captcha response:") and paste it here.
`

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var username string
	var password string
	var captcha string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the store and persist the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if strings.TrimSpace(username) == "" {
				if username, err = promptLine(cmd, "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = promptPassword(cmd); err != nil {
					return err
				}
			}
			if strings.TrimSpace(captcha) == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", captchaGuidance)
				if captcha, err = promptLine(cmd, "Captcha: "); err != nil {
					return err
				}
			}

			return ctx.withClient(cmd, func(cctx context.Context, client *kobo.Client) error {
				if err := client.Login(cctx, username, password, captcha); err != nil {
					return fmt.Errorf("login: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Login successful. Session saved.")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Account email address")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prompted when omitted)")
	cmd.Flags().StringVar(&captcha, "captcha", "", "Solved captcha response")

	return cmd
}

// promptLine reads one non-empty line from stdin. Prompting requires a
// terminal so a misconfigured pipeline fails instead of hanging.
func promptLine(cmd *cobra.Command, prompt string) (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", errors.New("stdin is not a terminal; pass the value as a flag instead")
	}
	reader := bufio.NewReader(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.OutOrStdout(), prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			return line, nil
		}
	}
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal; pass --password instead")
	}
	for {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if len(raw) > 0 {
			return string(raw), nil
		}
	}
}
