package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Abdul07in/supplychainx/internal/events"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Count int
	Kinds []string
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream domain events from the server",
		Long: `Stream committed domain events from the server's live feed.

Example:
  supplyctl watch --kind stock.low --kind shipment.status.updated`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Count, "count", 0, "stop after this many events (0 streams until interrupted)")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only show these event kinds")

	return cmd
}

type feedEvent struct {
	Kind      events.Kind     `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emitted_at"`
}

func watch(cmd *cobra.Command, opts *WatchOptions) error {
	wanted := map[events.Kind]bool{}
	for _, k := range opts.Kinds {
		kind := events.Kind(k)
		if !kind.Known() {
			return fmt.Errorf("unknown event kind %q", k)
		}
		wanted[kind] = true
	}

	url := "ws" + strings.TrimPrefix(strings.TrimSuffix(opts.Server, "/"), "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(cmd.Context(), url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer conn.Close()

	go func() {
		<-cmd.Context().Done()
		conn.Close()
	}()

	seen := 0
	for opts.Count == 0 || seen < opts.Count {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return fmt.Errorf("reading feed: %w", err)
		}

		var e feedEvent
		if err := json.Unmarshal(message, &e); err != nil {
			return fmt.Errorf("decoding feed event: %w", err)
		}
		if len(wanted) > 0 && !wanted[e.Kind] {
			continue
		}
		seen++

		if err := printEvent(cmd.OutOrStdout(), opts.Format, e); err != nil {
			return err
		}
	}
	return nil
}

func printEvent(w io.Writer, format string, e feedEvent) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(e)
	}
	_, err := fmt.Fprintf(w, "%s  %-24s %s\n", e.EmittedAt.Format(time.RFC3339), e.Kind, e.Payload)
	return err
}
