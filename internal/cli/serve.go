package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veritas-audit/veritas/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the /chat/ask HTTP surface and its progress websocket",
	Long: `Serve starts the minimal HTTP surface spec §6 names: POST /chat/ask
(reformulate with the Context Analyzer, route with the Router, and shape
the response by whichever mode the Router picked) and a
/progress/{session_id} websocket streaming that session's Progress Bus
events. Everything else in §6 (admin/read/audits/sources CRUD) is out of
this core's scope and is not served here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		defer func() { _ = a.Close() }()

		srv := httpapi.New(a.ContextAnalyzer, a.Router, a.Bus)
		addr := a.Config.HTTP.Addr
		a.Log.Info("http surface listening", zap.String("addr", addr))
		return http.ListenAndServe(addr, srv.Mux())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
