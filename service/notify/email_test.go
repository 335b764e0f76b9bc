package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEmailConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  EmailConfig
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty config",
			config:  EmailConfig{},
			wantErr: true,
			errMsg:  "SMTP host is required",
		},
		{
			name:    "missing port",
			config:  EmailConfig{Host: "smtp.example.com"},
			wantErr: true,
			errMsg:  "SMTP port is required",
		},
		{
			name:    "missing from",
			config:  EmailConfig{Host: "smtp.example.com", Port: 587},
			wantErr: true,
			errMsg:  "from address is required",
		},
		{
			name:   "valid config",
			config: EmailConfig{Host: "smtp.example.com", Port: 587, From: "wildwatch@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error containing %q, got nil", tt.errMsg)
				} else if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("expected error containing %q, got %q", tt.errMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	channel := &EmailChannel{
		config: EmailConfig{From: "WildWatch <alerts@example.com>"},
	}

	msg := string(channel.buildMIMEMessage(
		[]string{"farmer@example.com", "ranger@example.com"},
		"HIGH DANGER: tiger detected", "Plain body", "<p>HTML body</p>"))

	for _, want := range []string{
		"From: WildWatch <alerts@example.com>",
		"To: farmer@example.com, ranger@example.com",
		"Subject: HIGH DANGER: tiger detected",
		"MIME-Version: 1.0",
		"multipart/alternative",
		"Plain body",
		"<p>HTML body</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"farmer@example.com", "farmer@example.com"},
		{"Farmer <farmer@example.com>", "farmer@example.com"},
		{"WildWatch Alerts <alerts@example.com>", "alerts@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := extractEmail(tt.input); got != tt.want {
				t.Errorf("extractEmail(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEmailChannelRequiresRecipients(t *testing.T) {
	channel, err := NewEmail(EmailConfig{Host: "127.0.0.1", Port: 2525, From: "a@example.com"})
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}
	if err := channel.Send(context.Background(), nil, Message{Subject: "x"}); err == nil {
		t.Error("expected error for empty recipients")
	}
}

// mockSMTPServer accepts plain SMTP sessions and records message bodies.
type mockSMTPServer struct {
	listener net.Listener
	messages [][]byte
	rcpts    []string
	mu       sync.Mutex
	wg       sync.WaitGroup
}

func newMockSMTPServer(t *testing.T) *mockSMTPServer {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	server := &mockSMTPServer{listener: listener}
	server.wg.Add(1)
	go server.serve()
	return server
}

func (s *mockSMTPServer) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *mockSMTPServer) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			writer.WriteString(l + "\r\n")
		}
		writer.Flush()
	}

	reply("220 localhost SMTP Mock Server")

	var dataMode bool
	var messageData []byte
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		if dataMode {
			if line == "." {
				dataMode = false
				s.mu.Lock()
				s.messages = append(s.messages, messageData)
				s.mu.Unlock()
				messageData = nil
				reply("250 OK")
				continue
			}
			messageData = append(messageData, []byte(line+"\n")...)
			continue
		}

		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250-localhost", "250 OK")
		case strings.HasPrefix(upper, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, line[len("RCPT TO:"):])
			s.mu.Unlock()
			reply("250 OK")
		case upper == "DATA":
			dataMode = true
			reply("354 Start mail input")
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("500 Unknown command")
		}
	}
}

func (s *mockSMTPServer) close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *mockSMTPServer) snapshot() ([][]byte, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([][]byte, len(s.messages))
	copy(msgs, s.messages)
	rcpts := make([]string, len(s.rcpts))
	copy(rcpts, s.rcpts)
	return msgs, rcpts
}

func TestEmailChannelSendWithMockSMTP(t *testing.T) {
	server := newMockSMTPServer(t)
	defer server.close()

	host, portStr, _ := net.SplitHostPort(server.listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	channel, err := NewEmail(EmailConfig{Host: host, Port: port, From: "WildWatch <alerts@example.com>"})
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = channel.Send(ctx, []string{"farmer@example.com", "Ranger <ranger@example.com>"}, Message{
		Subject:     "HIGH DANGER: tiger detected",
		Text:        "A tiger was detected at 120cm",
		Attachments: []string{"http://snapshots/abc.jpg"},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	// QUIT is sent after DATA completes, so the message is already recorded.
	msgs, rcpts := server.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	body := string(msgs[0])
	if !strings.Contains(body, "tiger detected") {
		t.Error("message doesn't contain subject")
	}
	if !strings.Contains(body, "http://snapshots/abc.jpg") {
		t.Error("message doesn't contain snapshot link")
	}
	if len(rcpts) != 2 || !strings.Contains(rcpts[1], "ranger@example.com") {
		t.Errorf("unexpected recipients: %v", rcpts)
	}
}
