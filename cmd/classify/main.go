package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
	"github.com/mikey/email-classifier/internal/features"
	"github.com/mikey/email-classifier/internal/logging"
	"github.com/mikey/email-classifier/internal/model"
	"github.com/mikey/email-classifier/internal/schema"
	"github.com/mikey/email-classifier/internal/whitelist"
)

var (
	artifactPath = flag.String("artifact", "model.json", "Path to the model artifact")
	inputFile    = flag.String("file", "", "Input email file (use stdin if not specified)")
	trusted      = flag.String("trusted", "", "Comma-separated list of trusted sender domains")
	hamLabel     = flag.String("ham-label", "ham", "Label assigned to trusted senders")
	jsonOutput   = flag.Bool("json", false, "Print the prediction as JSON")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog      = flag.Bool("json-log", false, "Output logs in JSON format")
)

func main() {
	flag.Parse()

	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load the model artifact; no serving without a valid model
	artifact, err := model.Load(*artifactPath)
	if err != nil {
		logger.Fatal("Failed to load model artifact", zap.Error(err))
	}
	logger.Info("Model artifact loaded",
		zap.String("schema_version", artifact.SchemaVersion()),
		zap.Strings("labels", artifact.Labels()))

	registry, err := schema.NewRegistry(artifact.Schema())
	if err != nil {
		logger.Fatal("Invalid artifact schema", zap.Error(err))
	}

	extractor, err := features.NewExtractor(registry, logger)
	if err != nil {
		logger.Fatal("Artifact schema incompatible with extractor", zap.Error(err))
	}

	var trustedDomains []string
	if *trusted != "" {
		trustedDomains = strings.Split(*trusted, ",")
	}

	service := core.NewClassificationService(
		extractor,
		registry,
		artifact,
		logger,
		whitelist.NewChecker(trustedDomains, logger),
		*hamLabel,
	)

	email, err := readEmail(logger)
	if err != nil {
		logger.Fatal("Failed to read email", zap.Error(err))
	}

	pred, err := service.Classify(context.Background(), email)
	if err != nil {
		logger.Fatal("Classification failed", zap.Error(err))
	}

	printPrediction(pred)
}

// readEmail parses an RFC 5322 message from the input file or stdin.
func readEmail(logger *zap.Logger) (*core.RawEmail, error) {
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file %q: %w", *inputFile, err)
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read email body: %w", err)
	}

	headers := make(map[string]string, len(msg.Header))
	for key, values := range msg.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	var to []string
	if raw := msg.Header.Get("To"); raw != "" {
		for _, addr := range strings.Split(raw, ",") {
			to = append(to, strings.TrimSpace(addr))
		}
	}

	return &core.RawEmail{
		From:       msg.Header.Get("From"),
		To:         to,
		Subject:    msg.Header.Get("Subject"),
		Body:       string(bodyBytes),
		Headers:    headers,
		ReceivedAt: time.Now(),
	}, nil
}

func printPrediction(pred *core.Prediction) {
	if *jsonOutput {
		out, _ := json.MarshalIndent(map[string]any{
			"label":          pred.Label,
			"confidence":     pred.Confidence,
			"schema_version": pred.SchemaVersion,
			"model_type":     pred.ModelType,
			"processing_id":  pred.ProcessingID,
			"predicted_at":   pred.PredictedAt.UTC().Format(time.RFC3339),
		}, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("Email Classification Result")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Label:          %s\n", pred.Label)
	fmt.Printf("Confidence:     %.4f\n", pred.Confidence)
	fmt.Printf("Schema version: %s\n", pred.SchemaVersion)
	fmt.Printf("Model type:     %s\n", pred.ModelType)
	fmt.Printf("Processing ID:  %s\n", pred.ProcessingID)
}
