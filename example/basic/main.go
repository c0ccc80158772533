package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/siherrmann/vidrag"
	"github.com/siherrmann/vidrag/helper"
	"github.com/siherrmann/vidrag/model"
)

const sampleTranscript = `Welcome to this introduction to vector databases.

Vector databases store high dimensional embeddings and retrieve them by
similarity instead of exact matching. Every piece of content is turned into
a numeric vector by an embedding model, and questions are answered by
finding the vectors closest to the question's own embedding.

For video content this works particularly well. A transcript is split into
overlapping chunks, each chunk is embedded, and retrieval then surfaces the
spoken passages most relevant to a question about the video.

Flat indexes keep every vector in memory and scan all of them per query.
They are exact and simple, and for collections up to a few hundred thousand
vectors they are usually fast enough that nothing fancier is needed.`

func main() {
	// Point the store at a throwaway directory for the example
	dataDir, err := os.MkdirTemp("", "vidrag-example")
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	defer os.RemoveAll(dataDir)
	os.Setenv("VIDRAG_DATA_DIR", dataDir)

	config, err := helper.NewConfiguration()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	v, err := vidrag.New(config)
	if err != nil {
		log.Fatalf("Failed to create vidrag: %v", err)
	}
	defer v.Close()

	// Set up the default pipeline (overlap chunking + MiniLM embeddings)
	if err := v.UseDefaultPipeline(); err != nil {
		log.Fatalf("Failed to set up pipeline: %v", err)
	}

	// Index a transcript directly. Processing a real video would instead go
	// through v.ProcessVideo with a URL, which downloads and transcribes it.
	result := &model.AcquisitionResult{
		VideoID:  "example00001",
		Title:    "Introduction to Vector Databases",
		Duration: 300,
		Transcript: &model.Transcript{
			Text:     sampleTranscript,
			Language: "en",
		},
		Method: model.MethodLocalWhisper,
	}

	fmt.Println("Indexing transcript...")
	if err := v.IndexTranscript(context.Background(), result); err != nil {
		log.Fatalf("Failed to index transcript: %v", err)
	}

	summaries, err := v.ListVideos()
	if err != nil {
		log.Fatalf("Failed to list videos: %v", err)
	}
	for _, summary := range summaries {
		fmt.Printf("Indexed %s with %d chunks\n", summary.Title, summary.ChunkCount)
	}

	// Ask a question restricted to the indexed video
	question := "How do vector databases retrieve content?"
	fmt.Printf("\nAsking: %s\n", question)

	queryConfig := model.DefaultQueryConfig()
	queryConfig.VideoID = result.VideoID

	answer, err := v.Ask(context.Background(), question, &queryConfig)
	if err != nil {
		log.Fatalf("Failed to answer question: %v", err)
	}

	fmt.Printf("\nAnswer: %s\n", answer.Text)
	fmt.Printf("Confidence: %.2f (%s backend)\n", answer.Confidence, answer.Backend)
	for i, source := range answer.Sources {
		fmt.Printf("\n--- Source %d ---\n", i+1)
		fmt.Printf("Score: %.4f\n", source.Score)
		fmt.Printf("Content: %s\n", source.Chunk.Content)
	}

	fmt.Println("\nBasic example completed successfully!")
}
