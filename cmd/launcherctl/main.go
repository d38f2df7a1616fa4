// launcherctl is a thin operator CLI over a running launcherd instance.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"launcherd/pkg/types"
)

type ctl struct {
	addr   string
	client *http.Client
}

func (c *ctl) url(path string) string {
	base := c.addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/") + path
}

// do issues a request and pretty-prints the JSON response. Non-2xx
// responses become errors carrying the server's user-facing message.
func (c *ctl) do(method, path string, body any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.url(path), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var er types.ErrorResponse
		if json.Unmarshal(b, &er) == nil && er.Error != "" {
			return fmt.Errorf("%s (%s)", er.Error, er.ErrorCode)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if len(bytes.TrimSpace(b)) == 0 {
		fmt.Println("ok")
		return nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "  "); err != nil {
		fmt.Println(string(b))
		return nil
	}
	fmt.Println(out.String())
	return nil
}

func main() {
	c := &ctl{client: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:           "launcherctl",
		Short:         "Inspect and drive a running launcherd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.addr, "addr", "127.0.0.1:8090", "launcherd address")

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the aggregate lifecycle status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(http.MethodGet, "/status", nil)
		},
	})

	var (
		username string
		uid      string
		token    string
		ram      int
	)
	launch := &cobra.Command{
		Use:   "launch",
		Short: "Launch the game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(http.MethodPost, "/launch", types.LaunchRequest{
				Username:    username,
				UUID:        uid,
				AccessToken: token,
				RAMMB:       ram,
			})
		},
	}
	launch.Flags().StringVar(&username, "username", "", "Player username")
	launch.Flags().StringVar(&uid, "uuid", "", "Player UUID")
	launch.Flags().StringVar(&token, "token", "", "Session access token")
	launch.Flags().IntVar(&ram, "ram-mb", 0, "RAM override (MB)")
	root.AddCommand(launch)

	root.AddCommand(&cobra.Command{
		Use:   "kill",
		Short: "Force-stop the running game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(http.MethodPost, "/kill", nil)
		},
	})

	modpackCmd := &cobra.Command{Use: "modpack", Short: "Modpack lifecycle operations"}
	modpackCmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check for updates and install if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(http.MethodPost, "/modpack/check", nil)
		},
	})
	modpackCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install or update the modpack",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(http.MethodPost, "/modpack/install", nil)
		},
	})
	var silent bool
	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify installed files against the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/modpack/verify"
			if silent {
				path += "?silent=1"
			}
			return c.do(http.MethodPost, path, nil)
		},
	}
	verify.Flags().BoolVar(&silent, "silent", false, "Record failures instead of reporting them")
	modpackCmd.AddCommand(verify)
	var dismiss bool
	errsCmd := &cobra.Command{
		Use:   "errors",
		Short: "Show or dismiss accumulated background errors",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dismiss {
				return c.do(http.MethodDelete, "/modpack/errors", nil)
			}
			return c.do(http.MethodGet, "/modpack/errors", nil)
		},
	}
	errsCmd.Flags().BoolVar(&dismiss, "dismiss", false, "Clear the background error list")
	modpackCmd.AddCommand(errsCmd)
	root.AddCommand(modpackCmd)

	root.AddCommand(&cobra.Command{
		Use:   "server",
		Short: "Show the last observed game-server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.do(http.MethodGet, "/server", nil)
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "launcherctl:", err)
		os.Exit(1)
	}
}
