// Command listen prints every snapshot of one or more document paths.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookclub/internal/docstore"
	"bookclub/pkg/listener"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8375", "API base URL")
	token := flag.String("token", os.Getenv("BOOKCLUB_TOKEN"), "Bearer token (or BOOKCLUB_TOKEN)")
	email := flag.String("email", "", "Log in with this email instead of a token")
	password := flag.String("password", "", "Password for -email")
	flag.Parse()

	paths := flag.Args()
	if len(paths) == 0 {
		log.Fatal("usage: listen [flags] <path> [path...]   e.g. listen groups groups/3/threads")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *token == "" && *email != "" {
		var err error
		if *token, err = login(ctx, *baseURL, *email, *password); err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}

	client, err := listener.Dial(ctx, listener.Config{BaseURL: *baseURL, Token: *token})
	if err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer func() { _ = client.Close() }()

	for _, p := range paths {
		path := p
		_, err := client.Listen(path, func(snap docstore.Snapshot, err error) {
			if err != nil {
				var le *listener.ListenError
				if errors.As(err, &le) {
					log.Printf("%s: listener ended: %s (%s)", path, le.Message, le.Code)
				}
				return
			}
			printSnapshot(snap)
		})
		if err != nil {
			log.Fatalf("Listen on %s failed: %v", path, err)
		}
	}

	select {
	case <-ctx.Done():
	case <-client.Done():
		log.Printf("Connection closed: %v", client.Err())
	}
}

func printSnapshot(snap docstore.Snapshot) {
	fmt.Printf("== %s (%d documents, read %s)\n", snap.Path, len(snap.Documents), snap.ReadAt.Format(time.RFC3339))
	for _, doc := range snap.Documents {
		data, _ := json.Marshal(doc.Data)
		fmt.Printf("  %s  %s\n", doc.ID, data)
	}
}

func login(ctx context.Context, baseURL, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(baseURL, "/")+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}
