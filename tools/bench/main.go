package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// -------------------- 统计 --------------------

type APITestStats struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	MaxLatency         time.Duration
	MinLatency         time.Duration
	totalLatency       time.Duration
	mu                 sync.Mutex
}

func (s *APITestStats) Add(success bool, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalRequests++
	if !success {
		s.FailedRequests++
		return
	}
	s.SuccessfulRequests++
	s.totalLatency += latency
	if latency > s.MaxLatency {
		s.MaxLatency = latency
	}
	if s.MinLatency == 0 || latency < s.MinLatency {
		s.MinLatency = latency
	}
}

func (s *APITestStats) AverageLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SuccessfulRequests == 0 {
		return 0
	}
	return s.totalLatency / time.Duration(s.SuccessfulRequests)
}

func (s *APITestStats) Report(title string, took time.Duration) {
	fmt.Printf("\n=== %s ===\n", title)
	fmt.Printf("耗时: %v\n", took)
	fmt.Printf("总数: %d 成功: %d 失败: %d\n", s.TotalRequests, s.SuccessfulRequests, s.FailedRequests)
	fmt.Printf("延迟 平均: %v 最大: %v 最小: %v\n", s.AverageLatency(), s.MaxLatency, s.MinLatency)
	if took > 0 {
		fmt.Printf("QPS: %.2f\n", float64(s.SuccessfulRequests)/took.Seconds())
	}
	if s.TotalRequests > 0 {
		fmt.Printf("成功率: %.2f%%\n", float64(s.SuccessfulRequests)/float64(s.TotalRequests)*100)
	}
}

// -------------------- HTTP --------------------

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type benchUser struct {
	ID    uint
	Token string
}

var client = &http.Client{Timeout: 8 * time.Second}

func call(method, target, token string, body interface{}, out interface{}) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return resp.StatusCode, err
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				return resp.StatusCode, err
			}
		}
	}
	return resp.StatusCode, nil
}

// signUp 注册并登录一个压测用户
func signUp(base, runID string, i int) (*benchUser, error) {
	name := fmt.Sprintf("bench_%s_%d", runID, i)
	email := name + "@bench.local"
	if code, err := call(http.MethodPost, base+"/api/auth/register", "", map[string]string{
		"username": name, "email": email, "password": "bench-password",
	}, nil); err != nil || code != http.StatusCreated {
		return nil, fmt.Errorf("register %s: status %d: %v", name, code, err)
	}
	var login struct {
		Token string `json:"token"`
		User  struct {
			UserID uint `json:"user_id"`
		} `json:"user"`
	}
	if code, err := call(http.MethodPost, base+"/api/auth/login", "", map[string]string{
		"email": email, "password": "bench-password",
	}, &login); err != nil || code != http.StatusOK {
		return nil, fmt.Errorf("login %s: status %d: %v", name, code, err)
	}
	return &benchUser{ID: login.User.UserID, Token: login.Token}, nil
}

func runHTTPBench(base string, users []*benchUser, perGoroutine int) {
	fmt.Println("\n=== HTTP API并发测试开始 ===")
	fmt.Printf("目标: %s 并发: %d 每协程请求: %d\n", base, len(users), perGoroutine)

	stats := &APITestStats{}
	var wg sync.WaitGroup
	start := time.Now()

	for _, u := range users {
		wg.Add(1)
		go func(u *benchUser) {
			defer wg.Done()
			var post struct {
				PostID uint `json:"post_id"`
			}
			if code, err := call(http.MethodPost, base+"/api/posts", u.Token, map[string]string{
				"content": "bench post",
			}, &post); err != nil || code != http.StatusCreated {
				stats.Add(false, 0)
				return
			}

			endpoints := []struct {
				method string
				path   string
			}{
				{http.MethodGet, "/api/posts"},
				{http.MethodGet, "/api/friends/list"},
				{http.MethodPost, fmt.Sprintf("/api/posts/%d/like", post.PostID)},
				{http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", post.PostID)},
			}
			for j := 0; j < perGoroutine; j++ {
				ep := endpoints[j%len(endpoints)]
				t := time.Now()
				code, err := call(ep.method, base+ep.path, u.Token, nil, nil)
				stats.Add(err == nil && code == http.StatusOK, time.Since(t))
			}
		}(u)
	}

	wg.Wait()
	stats.Report("HTTP API测试结果", time.Since(start))
}

// -------------------- WebSocket --------------------

func wsURL(base, token string) string {
	return strings.Replace(base, "http", "ws", 1) + "/ws?token=" + url.QueryEscape(token)
}

func dialAndBind(base string, u *benchUser) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(base, u.Token), nil)
	if err != nil {
		return nil, err
	}
	frame := map[string]interface{}{"event": "addUser", "data": map[string]uint{"user_id": u.ID}}
	if err := conn.WriteJSON(frame); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// runWSBench 两两配对，A 发送 messages 条，B 统计收到的 receiveMessage
func runWSBench(base string, users []*benchUser, messages int) {
	fmt.Println("\n=== WebSocket 私信测试开始 ===")
	stats := &APITestStats{}
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i+1 < len(users); i += 2 {
		wg.Add(1)
		go func(a, b *benchUser) {
			defer wg.Done()
			connA, err := dialAndBind(base, a)
			if err != nil {
				stats.Add(false, 0)
				return
			}
			defer connA.Close()
			connB, err := dialAndBind(base, b)
			if err != nil {
				stats.Add(false, 0)
				return
			}
			defer connB.Close()
			// 等待 addUser 生效
			time.Sleep(200 * time.Millisecond)

			for k := 0; k < messages; k++ {
				sent := time.Now()
				_ = connA.WriteJSON(map[string]interface{}{
					"event": "sendMessage",
					"data":  map[string]interface{}{"sender_id": a.ID, "receiver_id": b.ID, "text": fmt.Sprintf("bench %d", k)},
				})
				_ = connB.SetReadDeadline(time.Now().Add(5 * time.Second))
				var frame struct {
					Event string `json:"event"`
				}
				err := connB.ReadJSON(&frame)
				stats.Add(err == nil && frame.Event == "receiveMessage", time.Since(sent))
			}
		}(users[i], users[i+1])
	}

	wg.Wait()
	stats.Report("WebSocket 私信测试结果", time.Since(start))
}

// -------------------- 入口 --------------------

func main() {
	base := flag.String("base", "http://localhost:8080", "server base url")
	concurrency := flag.Int("c", 10, "concurrent users")
	perGoroutine := flag.Int("n", 20, "requests per user")
	messages := flag.Int("m", 20, "websocket messages per pair")
	flag.Parse()

	fmt.Println("=== PeopleGrid 并发测试 ===")
	fmt.Printf("开始时间: %s\n", time.Now().Format("2006-01-02 15:04:05"))

	runID := fmt.Sprintf("%d", time.Now().Unix())
	users := make([]*benchUser, 0, *concurrency)
	for i := 0; i < *concurrency; i++ {
		u, err := signUp(*base, runID, i)
		if err != nil {
			fmt.Println("创建压测用户失败:", err)
			return
		}
		users = append(users, u)
	}

	runHTTPBench(*base, users, *perGoroutine)
	runWSBench(*base, users, *messages)

	fmt.Println("\n=== 测试完成 ===")
}
