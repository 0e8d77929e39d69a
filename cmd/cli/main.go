package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"support-chatbot/internal/catalog"
	"support-chatbot/internal/chat"
	"support-chatbot/internal/classifier"
	"support-chatbot/internal/config"
	"support-chatbot/internal/crawler"
	"support-chatbot/internal/ioformats"
	"support-chatbot/internal/knowledge"
	"support-chatbot/internal/llm"
	"support-chatbot/internal/models"
	"support-chatbot/internal/parser"
	"support-chatbot/pkg/logger"
)

const defaultTopics = 15

// pageSummary is one NDJSON line of the refresh dump.
type pageSummary struct {
	URL      string                  `json:"url"`
	Title    string                  `json:"title"`
	Links    int                     `json:"links"`
	Images   int                     `json:"images"`
	Products []models.ProductMention `json:"products,omitempty"`
	Topics   []string                `json:"topics,omitempty"`
}

type app struct {
	cfg   *config.Config
	log   logger.Logger
	input string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "chatbot",
		Short:         "Scrape the brand site and answer questions from the command line",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.Path())
			if err != nil {
				return err
			}
			if a.input != "" {
				cfg.Site.PagesFile = a.input
			}
			l, err := logger.New(cfg.Logging)
			if err != nil {
				return err
			}
			a.cfg, a.log = cfg, l
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.input, "input", "", "page list file (csv with 'url' or 'path' column, or ndjson)")

	root.AddCommand(a.refreshCmd(), a.searchCmd(), a.askCmd(), a.classifyCmd(), a.countsCmd(), a.productsCmd())
	return root
}

func (a *app) store() *knowledge.Store {
	client := crawler.NewHTTPClient(a.cfg.Site.FetchTimeout, 5*time.Second, a.cfg.Site.MaxBodyBytes, a.cfg.Site.UserAgent)
	return knowledge.New(
		knowledge.NewSources(a.cfg.Site.BaseURL, a.cfg.Site.Paths, a.cfg.Site.PagesFile),
		client,
		parser.New(a.cfg.Site.BaseURL),
		a.log,
	)
}

func (a *app) refreshed(ctx context.Context) (*knowledge.Store, *models.RefreshSummary, error) {
	s := a.store()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Refresh.Timeout)
	defer cancel()
	summary, err := s.Refresh(ctx)
	return s, summary, err
}

func (a *app) refreshCmd() *cobra.Command {
	var output string
	var topics int
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Scrape every configured page and dump one NDJSON summary per page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, summary, err := a.refreshed(cmd.Context())
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}

			pages := s.Pages()
			out := make([]pageSummary, len(pages))
			for i, p := range pages {
				out[i] = pageSummary{
					URL:      p.URL,
					Title:    p.Title,
					Links:    len(p.Links),
					Images:   len(p.Images),
					Products: p.Products,
					Topics:   classifier.Topics(p.Text, topics),
				}
			}
			if err := ioformats.WriteNDJSON(w, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "pages=%d failed=%d products=%d duration=%s\n",
				summary.Pages, len(summary.Failed), summary.Products, summary.Duration.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output NDJSON file (default stdout)")
	cmd.Flags().IntVar(&topics, "topics", defaultTopics, "top terms listed per page")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Refresh, then print the best matching page snippets as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.refreshed(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.Search(strings.Join(args, " "), k))
		},
	}
	cmd.Flags().IntVarP(&k, "limit", "k", knowledge.DefaultResultLimit, "number of results")
	return cmd
}

func (a *app) askCmd() *cobra.Command {
	var lat, lon float64
	var withLocation bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Refresh, then answer a question the way the chat endpoint does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, _, err := a.refreshed(cmd.Context())
			if err != nil {
				return err
			}
			completer, err := llm.New(a.cfg.Completion)
			if err != nil && !errors.Is(err, llm.ErrNotConfigured) {
				return err
			}
			composer := chat.New(s, catalog.Default(), completer, a.log,
				chat.WithCompletion(a.cfg.Completion.Timeout, a.cfg.Completion.MaxTokens, a.cfg.Completion.Temperature))

			var loc *models.Location
			if withLocation {
				loc = &models.Location{Latitude: lat, Longitude: lon, Timestamp: time.Now()}
			}
			reply := composer.Respond(cmd.Context(), strings.Join(args, " "), loc)
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", reply.Intent, reply.Text)
			return nil
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude sent as location context")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude sent as location context")
	cmd.Flags().BoolVar(&withLocation, "located", false, "attach --lat/--lon as the caller's location")
	return cmd
}

func (a *app) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify UTTERANCE",
		Short: "Print the intent an utterance is routed to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), classifier.New().Classify(strings.Join(args, " ")))
			return nil
		},
	}
}

func (a *app) countsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Refresh, then print the product count snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, _, err := a.refreshed(cmd.Context())
			if err != nil {
				return err
			}
			counts, _ := s.ProductCounts()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(counts)
		},
	}
}

func (a *app) productsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the product catalog used for purchase and store answers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, e := range catalog.Default().Entries() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", e.Key, e.Name, strings.Join(e.AvailableSizes, ", "), e.AmazonURL)
			}
			return nil
		},
	}
}
