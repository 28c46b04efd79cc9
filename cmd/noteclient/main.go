package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	mode := flag.String("mode", "transcribe", "transcribe, summarize, expand or health")
	server := flag.String("server", "http://localhost:8000", "HTTP base URL")
	grpcAddr := flag.String("grpc", "localhost:50051", "gRPC health address (health mode)")
	tier := flag.String("tier", "recorded", "Transcription tier: live or recorded")
	audioFile := flag.String("audio", "testdata/session.wav", "Audio file to upload")
	textFile := flag.String("text", "", "File with the text to summarize")
	userType := flag.String("user-type", "Therapist", "Therapist, Counselor or Patient")
	noteType := flag.String("note-type", "Session Note", "Note type for the user type")
	prompt := flag.String("prompt", "Summarize the session as a concise clinical note.", "Summarization prompt")
	brief := flag.String("brief", "Explain what a school counselor does during a check-in.", "Brief to expand")
	audience := flag.String("audience", "parent", "Expansion audience")
	tone := flag.String("tone", "supportive", "Expansion tone")
	timeout := flag.Duration("timeout", 5*time.Minute, "Request timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	base := strings.TrimRight(*server, "/")
	client := &http.Client{}

	var (
		req *http.Request
		err error
	)
	switch *mode {
	case "transcribe":
		req, err = transcribeRequest(ctx, base, *tier, *audioFile, map[string]string{
			"user_type": *userType,
			"note_type": *noteType,
			"prompt":    *prompt,
		})
	case "summarize":
		req, err = summarizeRequest(ctx, base, *textFile, url.Values{
			"user_type": {*userType},
			"note_type": {*noteType},
			"prompt":    {*prompt},
		})
	case "expand":
		req, err = expandRequest(ctx, base, *brief, *audience, *tone)
	case "health":
		checkHealth(ctx, *grpcAddr)
		return
	default:
		log.Fatalf("Unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("Failed to build request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}
	log.Printf("%s %s -> %d in %s", req.Method, req.URL.Path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	fmt.Println(string(body))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func transcribeRequest(ctx context.Context, base, tier, path string, fields map[string]string) (*http.Request, error) {
	endpoint := "/v1/transcribe-recorded"
	if tier == "live" {
		endpoint = "/v1/transcribe-live"
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	fw, err := mw.CreateFormFile("audio_file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(fw, f)
	if err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	log.Printf("Uploading %s (%d bytes) to %s", path, n, endpoint)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

func summarizeRequest(ctx context.Context, base, path string, form url.Values) (*http.Request, error) {
	var text []byte
	var err error
	if path == "" || path == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	form.Set("long_text", string(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/summarize-text", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

func expandRequest(ctx context.Context, base, brief, audience, tone string) (*http.Request, error) {
	payload, err := json.Marshal(map[string]string{
		"brief":    brief,
		"audience": audience,
		"tone":     tone,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/v1/expand", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// checkHealth prints the overall status and the status of every backend
// registered with the gRPC health server.
func checkHealth(ctx context.Context, addr string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)
	for _, service := range []string{"", "clinical.notes.redis", "clinical.notes.ffmpeg", "clinical.notes.ollama"} {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			log.Printf("%-24q unavailable: %v", service, err)
			continue
		}
		log.Printf("%-24q %s", service, resp.GetStatus())
	}
}
