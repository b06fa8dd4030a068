// application/services/notification/transport.go
package notification

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"competitor-price-monitor/internal/delivery/telegram/app/http_client"
	"competitor-price-monitor/pkg/logger"
)

// Transport доставляет готовый текст оператору
type Transport interface {
	Send(ctx context.Context, text string) error
	Name() string
}

// TelegramNotifier отправляет сообщения в один чат
type TelegramNotifier struct {
	client *http_client.TelegramClient
	chatID string
}

func NewTelegramNotifier(client *http_client.TelegramClient, chatID string) *TelegramNotifier {
	return &TelegramNotifier{client: client, chatID: chatID}
}

func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	_, err := n.client.SendMessage(ctx, n.chatID, text)
	return err
}

func (n *TelegramNotifier) Name() string {
	return "telegram"
}

// ConsoleNotifier печатает сообщения в консоль
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleNotifier создает консольный транспорт, nil - stdout
func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &ConsoleNotifier{w: w}
}

func (n *ConsoleNotifier) Send(ctx context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "──────── ALERT ────────\n%s\n───────────────────────\n", text)
	return err
}

func (n *ConsoleNotifier) Name() string {
	return "console"
}

// Tee отправляет в основной транспорт и дублирует в зеркало.
// Результат определяется только основным транспортом.
type Tee struct {
	primary Transport
	mirror  Transport
}

func NewTee(primary, mirror Transport) *Tee {
	return &Tee{primary: primary, mirror: mirror}
}

func (t *Tee) Send(ctx context.Context, text string) error {
	if err := t.mirror.Send(ctx, text); err != nil {
		logger.Warn("⚠️ Mirror transport %s failed: %v", t.mirror.Name(), err)
	}
	return t.primary.Send(ctx, text)
}

func (t *Tee) Name() string {
	return t.primary.Name() + "+" + t.mirror.Name()
}
