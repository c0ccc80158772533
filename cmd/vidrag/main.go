package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/siherrmann/vidrag"
	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	jsonOutput bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vidrag",
		Short: "Ask questions about video content",
		Long: `Vidrag downloads a video's transcript (local whisper transcription
with a captions fallback), chunks and embeds it into a persistent
vector index, and answers questions about the content.`,
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{"version": version})
			} else {
				fmt.Printf("vidrag %s\n", version)
			}
		},
	})

	// process command
	processCmd := &cobra.Command{
		Use:   "process <url-or-id>",
		Short: "Acquire a video transcript and index it",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			mode, _ := cmd.Flags().GetString("mode")
			language, _ := cmd.Flags().GetString("language")
			modelSize, _ := cmd.Flags().GetString("model-size")
			wait, _ := cmd.Flags().GetBool("wait")

			v := openVidRAG(false)
			defer v.Close()

			options := model.DefaultAcquireOptions()
			options.Mode = model.ProcessingMode(mode)
			options.Language = language
			if modelSize != "" {
				options.ModelSize = modelSize
			}

			ack, err := v.ProcessVideo(context.Background(), args[0], options)
			if err != nil {
				fail("Failed to process video: %v", err)
			}

			if wait {
				v.Tasks.Wait()
				if task := v.TaskStatus(ack.VideoID); task != nil {
					ack.Status = string(task.Status)
					if task.Error != "" {
						fail("Indexing failed: %v", task.Error)
					}
				}
			}

			if jsonOutput {
				printJSON(ack)
			} else {
				fmt.Printf("✓ %s (%s)\n", ack.Title, ack.VideoID)
				fmt.Printf("  Duration: %s\n", formatDuration(ack.Duration))
				fmt.Printf("  Transcript: %d chars via %s\n", ack.TranscriptLength, ack.Method)
				fmt.Printf("  Status: %s\n", ack.Status)
			}
		},
	}
	processCmd.Flags().String("mode", string(model.ModeLocal), "Acquisition mode: local or transcript_api")
	processCmd.Flags().String("language", "", "Preferred transcript language code")
	processCmd.Flags().String("model-size", "", "Whisper model size (tiny, base, small, medium, large)")
	processCmd.Flags().Bool("wait", false, "Wait for indexing to finish before exiting")
	rootCmd.AddCommand(processCmd)

	// ask command
	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about indexed videos",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			videoID, _ := cmd.Flags().GetString("video")
			topK, _ := cmd.Flags().GetInt("top-k")
			backend, _ := cmd.Flags().GetString("backend")

			generative := backend == string(model.BackendGenerative)
			v := openVidRAG(generative)
			defer v.Close()

			config := model.DefaultQueryConfig()
			config.VideoID = videoID
			config.TopK = topK
			config.Backend = model.AnswerBackendKind(backend)

			answer, err := v.Ask(context.Background(), args[0], &config)
			if err != nil {
				fail("Failed to answer question: %v", err)
			}

			if jsonOutput {
				printJSON(answer)
			} else {
				fmt.Println(answer.Text)
				fmt.Printf("\nConfidence: %.2f (%s)\n", answer.Confidence, answer.Backend)
				for _, source := range answer.Sources {
					fmt.Printf("  [%.3f] %s #%d\n", source.Score, source.Chunk.VideoID, source.Chunk.ChunkIndex)
				}
			}
		},
	}
	askCmd.Flags().String("video", "", "Restrict retrieval to one video id")
	askCmd.Flags().Int("top-k", model.DefaultQueryConfig().TopK, "Number of chunks to retrieve")
	askCmd.Flags().String("backend", string(model.BackendExtractive), "Answer backend: extractive or generative")
	rootCmd.AddCommand(askCmd)

	// videos command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "videos",
		Short: "List processed videos",
		Run: func(cmd *cobra.Command, args []string) {
			v := openVidRAG(false)
			defer v.Close()

			summaries, err := v.ListVideos()
			if err != nil {
				fail("Failed to list videos: %v", err)
			}

			if jsonOutput {
				printJSON(summaries)
				return
			}
			if len(summaries) == 0 {
				fmt.Println("No videos processed yet")
				return
			}
			for _, summary := range summaries {
				fmt.Printf("%s  %s (%s, %d chunks)\n",
					summary.ID, summary.Title, formatDuration(summary.Duration), summary.ChunkCount)
			}
		},
	})

	// delete command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "delete <video-id>",
		Short: "Remove a video and its chunks from the store",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			v := openVidRAG(false)
			defer v.Close()

			if err := v.DeleteVideo(args[0]); err != nil {
				fail("Failed to delete video: %v", err)
			}
			if jsonOutput {
				printJSON(map[string]string{"deleted": args[0]})
			} else {
				fmt.Printf("✓ Deleted %s\n", args[0])
			}
		},
	})

	// probe command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "probe <url-or-id>",
		Short: "Show video metadata without downloading",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			v := openVidRAG(false)
			defer v.Close()

			info, err := v.Probe(context.Background(), args[0])
			if err != nil {
				fail("Failed to probe video: %v", err)
			}

			available, languages, err := v.CheckTranscript(context.Background(), args[0])
			if err != nil {
				fail("Failed to check captions: %v", err)
			}

			if jsonOutput {
				printJSON(map[string]interface{}{
					"info":              info,
					"captions":          available,
					"caption_languages": languages,
				})
				return
			}
			fmt.Printf("%s (%s)\n", info.Title, info.ID)
			fmt.Printf("  Duration: %s\n", formatDuration(info.Duration))
			if info.Uploader != "" {
				fmt.Printf("  Uploader: %s\n", info.Uploader)
			}
			if available {
				fmt.Printf("  Captions: %v\n", languages)
			} else {
				fmt.Println("  Captions: none")
			}
		},
	})

	// compact command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "compact",
		Short: "Reclaim index space left by deleted videos",
		Run: func(cmd *cobra.Command, args []string) {
			v := openVidRAG(false)
			defer v.Close()

			before := v.Index.Len()
			if err := v.CompactIndex(); err != nil {
				fail("Failed to compact index: %v", err)
			}
			after := v.Index.Len()

			if jsonOutput {
				printJSON(map[string]int{"vectors_before": before, "vectors_after": after})
			} else {
				fmt.Printf("✓ Compacted index: %d -> %d vectors\n", before, after)
			}
		},
	})

	// cleanup command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Remove leftover media from the scratch directory",
		Run: func(cmd *cobra.Command, args []string) {
			v := openVidRAG(false)
			defer v.Close()

			removed, err := v.CleanupDownloads()
			if err != nil {
				fail("Failed to clean up downloads: %v", err)
			}
			if jsonOutput {
				printJSON(map[string]int{"removed": removed})
			} else {
				fmt.Printf("✓ Removed %d leftover files\n", removed)
			}
		},
	})

	// serve command
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve process and ask as JSON endpoints",
		Run: func(cmd *cobra.Command, args []string) {
			addr, _ := cmd.Flags().GetString("addr")
			generative, _ := cmd.Flags().GetBool("generative")

			v := openVidRAG(generative)
			defer v.Close()

			if err := serve(v, addr); err != nil {
				fail("Server stopped: %v", err)
			}
		},
	}
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().Bool("generative", false, "Also register the generative answer backend")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openVidRAG loads the environment configuration and sets up a ready-to-use
// instance with the default pipeline. Any failure here is fatal since no
// command can run without it.
func openVidRAG(generative bool) *vidrag.VidRAG {
	config, err := helper.NewConfiguration()
	if err != nil {
		fail("Failed to load configuration: %v", err)
	}

	v, err := vidrag.New(config)
	if err != nil {
		fail("Failed to initialize: %v", err)
	}

	if err := v.UseDefaultPipeline(); err != nil {
		fail("Failed to set up pipeline: %v", err)
	}

	if generative {
		if err := v.UseGenerativeBackend(context.Background()); err != nil {
			fail("Failed to set up generative backend: %v", err)
		}
	}

	return v
}

func serve(v *vidrag.VidRAG, addr string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /process", func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Locator   string `json:"locator"`
			Mode      string `json:"mode,omitempty"`
			Language  string `json:"language,omitempty"`
			ModelSize string `json:"model_size,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		options := model.DefaultAcquireOptions()
		if request.Mode != "" {
			options.Mode = model.ProcessingMode(request.Mode)
		}
		options.Language = request.Language
		if request.ModelSize != "" {
			options.ModelSize = request.ModelSize
		}

		ack, err := v.ProcessVideo(r.Context(), request.Locator, options)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusAccepted, ack)
	})

	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		var request struct {
			Question string `json:"question"`
			VideoID  string `json:"video_id,omitempty"`
			TopK     int    `json:"top_k,omitempty"`
			Backend  string `json:"backend,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		config := model.DefaultQueryConfig()
		config.VideoID = request.VideoID
		if request.TopK > 0 {
			config.TopK = request.TopK
		}
		if request.Backend != "" {
			config.Backend = model.AnswerBackendKind(request.Backend)
		}

		answer, err := v.Ask(r.Context(), request.Question, &config)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeJSON(w, http.StatusOK, answer)
	})

	mux.HandleFunc("GET /videos", func(w http.ResponseWriter, r *http.Request) {
		summaries, err := v.ListVideos()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	})

	mux.HandleFunc("GET /status/{videoID}", func(w http.ResponseWriter, r *http.Request) {
		task := v.TaskStatus(r.PathValue("videoID"))
		if task == nil {
			writeError(w, http.StatusNotFound, fmt.Errorf("no task for video"))
			return
		}
		writeJSON(w, http.StatusOK, task)
	})

	mux.HandleFunc("DELETE /videos/{videoID}", func(w http.ResponseWriter, r *http.Request) {
		if err := v.DeleteVideo(r.PathValue("videoID")); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": r.PathValue("videoID")})
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("Listening on %s\n", addr)
	return server.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return d.String()
}
