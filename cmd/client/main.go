package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

type collectRequest struct {
	ChatTarget any  `json:"chat_target"`
	Limit      int  `json:"limit,omitempty"`
	Async      bool `json:"async"`
}

type RunStatusResponse struct {
	RunID        string          `json:"run_id"`
	Status       string          `json:"status"`
	Outcome      json.RawMessage `json:"outcome,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

func main() {
	var (
		serverAddr string
		token      string
		limit      int
		interval   time.Duration
	)
	flag.StringVar(&serverAddr, "server", "http://localhost:8080", "Server address")
	flag.StringVar(&token, "token", os.Getenv("INTEL_TOKEN"), "Access token (defaults to $INTEL_TOKEN)")
	flag.IntVar(&limit, "limit", 0, "Maximum participants per chat")
	flag.DurationVar(&interval, "interval", 5*time.Second, "Run status polling interval")
	flag.Parse()

	targets := flag.Args()
	if len(targets) == 0 {
		log.Fatal("At least one target is required. Usage: client [flags] <target1> <target2> ...")
	}
	if token == "" {
		log.Fatal("Access token is required: pass -token or set INTEL_TOKEN")
	}

	c := &client{base: serverAddr, token: token, http: &http.Client{Timeout: 30 * time.Second}}

	failed := false
	for _, target := range targets {
		runID, err := c.start(target, limit)
		if err != nil {
			log.Printf("Не удалось запустить сбор для %s: %v", target, err)
			failed = true
			continue
		}
		fmt.Printf("Сбор для %s запущен, идентификатор прогона: %s\n", target, runID)

		if !c.wait(runID, interval) {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func (c *client) do(method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// start запускает асинхронный прогон. Числовые цели отправляются числом.
func (c *client) start(target string, limit int) (string, error) {
	req := collectRequest{ChatTarget: target, Limit: limit, Async: true}
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		req.ChatTarget = id
	}

	resp, err := c.do(http.MethodPost, "/api/v1/collector/collect", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("сервер вернул статус %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var runResp map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&runResp); err != nil {
		return "", fmt.Errorf("не удалось декодировать ответ: %w", err)
	}
	if runResp["run_id"] == "" {
		return "", fmt.Errorf("идентификатор прогона не найден в ответе")
	}
	return runResp["run_id"], nil
}

// wait опрашивает статус прогона до его завершения и печатает итог.
func (c *client) wait(runID string, interval time.Duration) bool {
	for {
		time.Sleep(interval)

		status, err := c.status(runID)
		if err != nil {
			log.Printf("Не удалось опросить статус прогона %s: %v", runID, err)
			return false
		}
		fmt.Printf("Статус прогона: %s\n", status.Status)

		switch status.Status {
		case "completed":
			fmt.Println("Итог прогона:")
			fmt.Println(string(status.Outcome))
			return true
		case "failed":
			fmt.Printf("Прогон не выполнен: %s\n", status.ErrorMessage)
			if len(status.Outcome) > 0 {
				fmt.Println(string(status.Outcome))
			}
			return false
		case "pending", "processing":
			continue
		default:
			log.Printf("Неизвестный статус прогона: %s", status.Status)
			return false
		}
	}
}

func (c *client) status(runID string) (*RunStatusResponse, error) {
	resp, err := c.do(http.MethodGet, "/api/v1/collector/runs/"+runID, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("сервер вернул статус %d", resp.StatusCode)
	}

	var status RunStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("не удалось декодировать ответ статуса: %w", err)
	}
	return &status, nil
}
