package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/corey/cognitia/internal/ports"
)

// Client connects to the cognitia daemon over a Unix socket.
type Client struct {
	sockPath string
}

// NewClient creates a client that will connect to the given socket path.
func NewClient(sockPath string) *Client {
	return &Client{sockPath: sockPath}
}

// Search sends a search request and returns the result.
func (c *Client) Search(text string, html bool) (*SearchResult, error) {
	var result SearchResult
	err := c.do(MethodSearch, SearchParams{Text: text, HTML: html}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Match sends a batch of posts and returns per-post matches.
func (c *Client) Match(posts []Post) (*MatchResult, error) {
	var result MatchResult
	if err := c.do(MethodMatch, MatchParams{Posts: posts}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Rebuild asks the daemon to rebuild its matcher now and waits for it.
func (c *Client) Rebuild() (*RebuildResult, error) {
	resp, err := c.callWithTimeout(Request{ID: "1", Method: MethodRebuild}, requestTimeout+5*time.Second)
	if err != nil {
		return nil, err
	}
	var result RebuildResult
	if err := decodeResult(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health sends a health check request.
func (c *Client) Health() (*HealthResult, error) {
	var result HealthResult
	if err := c.do(MethodHealth, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Topics lists every topic the daemon's store holds.
func (c *Client) Topics() (*TopicsResult, error) {
	var result TopicsResult
	if err := c.do(MethodTopics, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Topic fetches one topic by ID.
func (c *Client) Topic(id int64) (*ports.TopicRecord, error) {
	var result ports.TopicRecord
	if err := c.do(MethodTopic, TopicParams{ID: id}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Upsert inserts or updates topics by URL. The daemon rebuilds in the
// background afterwards.
func (c *Client) Upsert(topics []ports.TopicRecord) (*UpsertResult, error) {
	var result UpsertResult
	if err := c.do(MethodUpsert, UpsertParams{Topics: topics}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteTopic removes a topic by ID.
func (c *Client) DeleteTopic(id int64) error {
	_, err := c.call(Request{ID: "1", Method: MethodDeleteTopic, Params: TopicParams{ID: id}})
	return err
}

// Shutdown sends a shutdown request to the daemon.
func (c *Client) Shutdown() error {
	_, err := c.call(Request{
		ID:     "1",
		Method: MethodShutdown,
	})
	return err
}

// Ping checks if the daemon is reachable.
func (c *Client) Ping() bool {
	conn, err := net.DialTimeout("unix", c.sockPath, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *Client) do(method string, params interface{}, result interface{}) error {
	resp, err := c.call(Request{ID: "1", Method: method, Params: params})
	if err != nil {
		return err
	}
	return decodeResult(resp, result)
}

// decodeResult re-marshals the generic result into dst.
func decodeResult(resp *Response, dst interface{}) error {
	resultJSON, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(resultJSON, dst); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

func (c *Client) call(req Request) (*Response, error) {
	return c.callWithTimeout(req, 5*time.Second)
}

func (c *Client) callWithTimeout(req Request, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.sockPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	// Set deadline for the whole request/response
	conn.SetDeadline(time.Now().Add(timeout))

	// Send request
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	// Read response
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		return nil, fmt.Errorf("empty response")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("server error: %s", resp.Error)
	}
	return &resp, nil
}
