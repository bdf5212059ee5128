// map-check：通过 HTTP 对运行中的地图服务执行一次完整的会话初始化，打印筛选项、标记数量、筛选与搜索结果
// 用法：map-check --api http://localhost:3000/api [summary|view|search|clusters]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"paman-dede/internal/client"
	"paman-dede/internal/config"
	"paman-dede/internal/logger"
	"paman-dede/internal/marker"
	"paman-dede/internal/view"
)

type options struct {
	api      string
	timeout  time.Duration
	villages string
	asJSON   bool
}

func main() {
	_ = godotenv.Load(".env")
	logger.Setup()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "map-check",
		Short:         "Run the map session against a running service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummary(cmd, o)
		},
	}
	def := os.Getenv("MAP_API")
	if def == "" {
		def = "http://localhost:3000/api"
	}
	root.PersistentFlags().StringVar(&o.api, "api", def, "API base URL")
	root.PersistentFlags().DurationVar(&o.timeout, "timeout", 30*time.Second, "overall timeout")
	root.PersistentFlags().StringVar(&o.villages, "villages", os.Getenv("VILLAGES_FILE"), "village table YAML (embedded table when empty)")
	root.PersistentFlags().BoolVar(&o.asJSON, "json", false, "print JSON")

	root.AddCommand(
		&cobra.Command{
			Use:   "summary",
			Short: "Print load statistics and facets",
			RunE:  func(cmd *cobra.Command, _ []string) error { return runSummary(cmd, o) },
		},
		newViewCmd(o),
		&cobra.Command{
			Use:   "search <term>",
			Short: "Search projects and places",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSearch(cmd, o, strings.Join(args, " "))
			},
		},
		newClustersCmd(o),
	)
	return root
}

func newViewCmd(o *options) *cobra.Command {
	var years []string
	var desa string
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Apply a year/village filter and print the resulting markers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runView(cmd, o, years, desa)
		},
	}
	cmd.Flags().StringSliceVar(&years, "year", nil, "years to show (default: all)")
	cmd.Flags().StringVar(&desa, "desa", "", "village to focus")
	return cmd
}

func newClustersCmd(o *options) *cobra.Command {
	var precision int
	var kind string
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "Group visible markers by geohash cell",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, cancel, err := start(cmd, o)
			if err != nil {
				return err
			}
			defer cancel()
			cs := s.Clusters(marker.Kind(kind), precision)
			if o.asJSON {
				return printJSON(cmd.OutOrStdout(), cs)
			}
			for _, c := range cs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%.5f,%.5f\n", c.Geohash, c.Count, c.Lat, c.Lng)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&precision, "precision", 6, "geohash precision (1-12)")
	cmd.Flags().StringVar(&kind, "kind", string(marker.KindProject), "project or place")
	return cmd
}

// start：建立会话并完成初始化；失败时输出与页面相同的提示
func start(cmd *cobra.Command, o *options) (*view.Session, context.CancelFunc, error) {
	vt, err := config.LoadVillageTable(o.villages)
	if err != nil {
		return nil, nil, fmt.Errorf("village table: %w", err)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.timeout)
	c := client.New(o.api, &http.Client{Timeout: o.timeout})
	s := view.NewSession(c, view.Options{Villages: vt})
	if err := s.Init(ctx); err != nil {
		cancel()
		fmt.Fprintln(cmd.ErrOrStderr(), view.UserMessage(err))
		return nil, nil, err
	}
	return s, cancel, nil
}

func runSummary(cmd *cobra.Command, o *options) error {
	s, cancel, err := start(cmd, o)
	if err != nil {
		return err
	}
	defer cancel()
	st := s.Status()
	f, err := s.Snapshot()
	if err != nil {
		return err
	}
	facets := s.Facets()
	if o.asJSON {
		return printJSON(cmd.OutOrStdout(), struct {
			Stats    view.Stats  `json:"stats"`
			Facets   view.Facets `json:"facets"`
			Projects int         `json:"projects"`
			Places   int         `json:"places"`
		}{st.Stats, facets, len(f.Projects), len(f.Places)})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "rows\t%d (delimiter %q, fallback %v, dropped %d)\n", st.Stats.Rows, st.Stats.Delimiter, st.Stats.Fallback, st.Stats.Dropped)
	fmt.Fprintf(w, "markers\t%d projects, %d places\n", len(f.Projects), len(f.Places))
	if st.Stats.PlacesError != "" {
		fmt.Fprintf(w, "places\tunavailable: %s\n", st.Stats.PlacesError)
	}
	fmt.Fprintf(w, "boundaries\t%d loaded, %d failed\n", len(st.Stats.BoundariesLoaded), len(st.Stats.BoundariesFailed))
	fmt.Fprintf(w, "years\t%s\n", strings.Join(facets.Years, ", "))
	fmt.Fprintf(w, "villages\t%s\n", strings.Join(facets.Villages, ", "))
	return nil
}

func runView(cmd *cobra.Command, o *options, years []string, desa string) error {
	s, cancel, err := start(cmd, o)
	if err != nil {
		return err
	}
	defer cancel()
	if len(years) > 0 {
		if _, err := s.Dispatch(view.SetYears{Years: years}); err != nil {
			return err
		}
	}
	f, err := s.Dispatch(view.SetVillage{Village: desa})
	if err != nil {
		return err
	}
	if o.asJSON {
		return printJSON(cmd.OutOrStdout(), f)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "selection\tyears=%s desa=%q\n", strings.Join(f.Selection.Years, ","), f.Selection.Village)
	fmt.Fprintf(w, "matched\t%d (%d with coordinates)\n", f.Matched, len(f.Projects))
	fmt.Fprintf(w, "viewport\t%v\n", f.Viewport.Bounds.Pairs())
	for _, m := range f.Projects {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.5f,%.5f\n", m.Popup.Title, m.Village, m.Year, m.Lat, m.Lng)
	}
	return nil
}

func runSearch(cmd *cobra.Command, o *options, term string) error {
	s, cancel, err := start(cmd, o)
	if err != nil {
		return err
	}
	defer cancel()
	f, err := s.Dispatch(view.Search{Term: term})
	if err != nil {
		return err
	}
	if o.asJSON {
		return printJSON(cmd.OutOrStdout(), f.Search)
	}
	w := cmd.OutOrStdout()
	if f.Search.NoResults {
		fmt.Fprintln(w, "Tidak ada hasil")
		return nil
	}
	for _, h := range f.Search.Hits {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.5f,%.5f\n", h.Kind, h.Label, h.Detail, h.Lat, h.Lng)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
