package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yourusername/vodgrab-go/internal/app"
	"github.com/yourusername/vodgrab-go/internal/domain"
	"github.com/yourusername/vodgrab-go/internal/infrastructure"
	"github.com/yourusername/vodgrab-go/pkg/logger"
)

var (
	serverURL  string
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "vodgrab",
		Short: "Vodgrab CLI - media acquisition pipeline",
		Long:  `A command-line interface for downloading, decrypting and muxing media titles from provider download configs.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	addOptionFlags(runCmd)
	addOptionFlags(addCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(retryCmd)
}

// addOptionFlags registers the per-title pipeline knobs.
func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("height", "q", 0, "Requested video height (0 means best)")
	cmd.Flags().StringSliceP("audio-languages", "a", nil, "Audio languages to keep (default all)")
	cmd.Flags().StringSliceP("subtitle-languages", "s", nil, "Subtitle languages to keep (default all)")
	cmd.Flags().Bool("skip-video", false, "Skip the video track")
	cmd.Flags().Bool("skip-audio", false, "Skip audio tracks")
	cmd.Flags().Bool("skip-subtitles", false, "Skip subtitle tracks and sidecar files")
	cmd.Flags().Bool("skip-mux", false, "Leave per-track files instead of muxing")
	cmd.Flags().Int("part-size", 0, "Segment requests in flight per track")
	cmd.Flags().String("trim-begin", "", "Trim output start (hh:mm:ss)")
	cmd.Flags().String("trim-end", "", "Trim output end (hh:mm:ss)")
}

func optionsFromFlags(cmd *cobra.Command) domain.Options {
	opts := domain.Options{}
	opts.VideoHeight, _ = cmd.Flags().GetInt("height")
	opts.AudioLanguages, _ = cmd.Flags().GetStringSlice("audio-languages")
	opts.SubtitleLanguages, _ = cmd.Flags().GetStringSlice("subtitle-languages")
	opts.SkipVideo, _ = cmd.Flags().GetBool("skip-video")
	opts.SkipAudio, _ = cmd.Flags().GetBool("skip-audio")
	opts.SkipSubtitles, _ = cmd.Flags().GetBool("skip-subtitles")
	opts.SkipMux, _ = cmd.Flags().GetBool("skip-mux")
	opts.PartSize, _ = cmd.Flags().GetInt("part-size")
	opts.TrimBegin, _ = cmd.Flags().GetString("trim-begin")
	opts.TrimEnd, _ = cmd.Flags().GetString("trim-end")
	return opts.WithDefaults()
}

func loadDownloadConfig(path string) (*domain.DownloadConfig, json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read download config: %w", err)
	}
	cfg, err := domain.ParseDownloadConfig(data)
	if err != nil {
		return nil, nil, err
	}
	return cfg, data, nil
}

var runCmd = &cobra.Command{
	Use:   "run [download-config.json]",
	Short: "Run the pipeline for one title locally",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		appConfig, err := app.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		log, err := logger.New(logger.Config{
			Level:      appConfig.Logging.Level,
			Format:     appConfig.Logging.Format,
			OutputPath: appConfig.Logging.OutputPath,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()

		downloadCfg, _, err := loadDownloadConfig(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		opts := optionsFromFlags(cmd)
		if opts.MovieTemplate == domain.DefaultMovieTemplate && appConfig.Pipeline.MovieTemplate != "" {
			opts.MovieTemplate = appConfig.Pipeline.MovieTemplate
		}
		if opts.EpisodeTemplate == domain.DefaultEpisodeTemplate && appConfig.Pipeline.EpisodeTemplate != "" {
			opts.EpisodeTemplate = appConfig.Pipeline.EpisodeTemplate
		}
		if !cmd.Flags().Changed("part-size") && appConfig.Pipeline.PartSize > 0 {
			opts.PartSize = appConfig.Pipeline.PartSize
		}

		client := &http.Client{Timeout: appConfig.Pipeline.HTTPTimeout}
		session := infrastructure.NewRemoteCDMSession(client, appConfig.Pipeline.CDMServer)
		defer session.Close()

		deps := app.PipelineDeps{
			Parser:    infrastructure.NewAutoDetectParser(client, log),
			Segments:  infrastructure.NewHTTPSegmentDownloader(client, log),
			Subtitles: infrastructure.NewHTTPSubtitleFetcher(client, log),
			Keys:      infrastructure.NewLicenseClient(client, session, log),
			Decryptor: infrastructure.NewMP4Decryptor(appConfig.Pipeline.DecryptorBinary, appConfig.Storage.LogsDir, log),
			Muxer:     infrastructure.NewFFmpegMuxer(appConfig.Pipeline.MuxerBinary, appConfig.Storage.LogsDir, log),
		}
		pipeline := app.NewPipeline(deps, appConfig.Storage.BaseDir, log)

		result, err := pipeline.Run(context.Background(), downloadCfg, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if result.OutputPath != "" {
			fmt.Printf("Done: %s\n", result.OutputPath)
		} else {
			fmt.Printf("Done, per-track files in %s\n", result.WorkDir)
		}
	},
}

var addCmd = &cobra.Command{
	Use:   "add [download-config.json]",
	Short: "Queue one title on the server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, rawConfig, err := loadDownloadConfig(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		payload := map[string]interface{}{
			"config":  json.RawMessage(rawConfig),
			"options": optionsFromFlags(cmd),
		}

		data, _ := json.Marshal(payload)
		resp, err := http.Post(serverURL+"/api/v1/jobs", "application/json", bytes.NewBuffer(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusCreated {
			fmt.Fprintf(os.Stderr, "Error: %s\n", string(body))
			os.Exit(1)
		}

		var result map[string]interface{}
		json.Unmarshal(body, &result)
		fmt.Printf("Job added successfully!\n")
		fmt.Printf("ID: %s\n", result["id"])
		fmt.Printf("Title: %s\n", result["title"])
		fmt.Printf("Status: %s\n", result["status"])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all jobs",
	Run: func(cmd *cobra.Command, args []string) {
		status, _ := cmd.Flags().GetString("status")

		url := serverURL + "/api/v1/jobs"
		if status != "" {
			url += "?status=" + status
		}

		resp, err := http.Get(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var jobs []map[string]interface{}
		json.Unmarshal(body, &jobs)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tPROVIDER\tSTATUS\tCREATED")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				truncate(fmt.Sprintf("%v", j["id"]), 8),
				truncate(fmt.Sprintf("%v", j["title"]), 40),
				j["provider"],
				j["status"],
				j["created_at"])
		}
		w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue statistics",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := http.Get(serverURL + "/api/v1/jobs/stats")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var stats map[string]interface{}
		json.Unmarshal(body, &stats)

		fmt.Println("Queue Statistics:")
		fmt.Printf("  Total:      %v\n", stats["total"])
		fmt.Printf("  Queued:     %v\n", stats["queued"])
		fmt.Printf("  Processing: %v\n", stats["processing"])
		fmt.Printf("  Completed:  %v\n", stats["completed"])
		fmt.Printf("  Failed:     %v\n", stats["failed"])
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get job details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		resp, err := http.Get(serverURL + "/api/v1/jobs/" + id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		var job map[string]interface{}
		json.Unmarshal(body, &job)

		fmt.Printf("Job Details:\n")
		fmt.Printf("  ID:       %s\n", job["id"])
		fmt.Printf("  Title:    %s\n", job["title"])
		fmt.Printf("  Provider: %s\n", job["provider"])
		fmt.Printf("  Status:   %s\n", job["status"])
		fmt.Printf("  Created:  %s\n", job["created_at"])
		if job["failed_stage"] != nil {
			fmt.Printf("  Failed:   %s (%s)\n", job["error_message"], job["failed_stage"])
		}
		if job["output_path"] != nil {
			fmt.Printf("  Output:   %s\n", job["output_path"])
		}
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed job",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := args[0]
		resp, err := http.Post(serverURL+"/api/v1/jobs/"+id+"/retry", "application/json", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		fmt.Println("Job queued for retry")
	},
}

func init() {
	listCmd.Flags().String("status", "", "Filter by status")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
