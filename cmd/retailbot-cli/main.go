package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/ngocvo/retailbot/internal/catalog"
	"github.com/ngocvo/retailbot/internal/config"
	"github.com/ngocvo/retailbot/internal/genai"
	"github.com/ngocvo/retailbot/internal/history"
	"github.com/ngocvo/retailbot/internal/responder"
	"github.com/ngocvo/retailbot/internal/speech"
)

const farewell = "tạm biệt"

// retailbot-cli runs the same conversational pipeline as the server, with
// one implicit session on the terminal. Typed input by default; --listen
// uses the microphone instead, --speak reads replies out loud.
func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	listen := cli.BoolP("listen", "l", false, "Use the microphone instead of typed input")
	speak := cli.BoolP("speak", "s", false, "Speak replies through the speakers")
	cli.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()
	store, err := catalog.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("catalog store init failed: %v", err)
	}
	defer store.Close()

	model, err := genai.NewGemini(genai.GeminiConfig{
		APIKey:  cfg.GoogleAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GeminiTimeout,
	})
	if err != nil {
		log.Fatalf("gemini client init failed: %v", err)
	}

	var voice *speech.GoogleProvider
	if *listen || *speak {
		voice, err = speech.NewGoogleProvider(speech.GoogleConfig{
			APIKey:      cfg.GoogleAPIKey,
			STTLanguage: cfg.STTLanguage,
			TTSLanguage: cfg.TTSLanguage,
		})
		if err != nil {
			log.Fatalf("speech provider init failed: %v", err)
		}
	}

	lookup := catalog.NewLookup(store, cfg.CatalogSearchLimit)
	rsp := responder.New(model)
	hist := history.New(cfg.HistoryPairs)

	fmt.Println("Chào mừng bạn đến với Chatbot Hỗ trợ!")
	fmt.Printf("Nói '%s' để kết thúc.\n\n", farewell)

	reader := bufio.NewScanner(os.Stdin)
	for {
		input, ok := nextInput(ctx, reader, voice, *listen)
		if !ok {
			break
		}
		if input == "" {
			fmt.Println("Vui lòng thử lại hoặc nói rõ hơn.")
			continue
		}
		if strings.Contains(strings.ToLower(input), farewell) {
			fmt.Println("Cảm ơn bạn đã sử dụng chatbot. Tạm biệt!")
			break
		}

		var knowledge string
		if catalog.ShouldSearch(input) {
			fmt.Println("Đang tìm kiếm thông tin trong cơ sở dữ liệu...")
			if block, found := lookup.Search(ctx, input); found {
				knowledge = block
				fmt.Println("Đã tìm thấy thông tin liên quan.")
			} else {
				fmt.Println("Không tìm thấy thông tin cụ thể, sẽ hỏi AI chung.")
			}
		}

		hist.Append(history.RoleUser, input)
		answer := rsp.Respond(ctx, hist.Turns(), knowledge)
		hist.Append(history.RoleModel, answer)

		fmt.Println("\nChatbot trả lời:")
		fmt.Println(answer)
		if *speak && voice != nil {
			if err := voice.Speak(ctx, answer); err != nil {
				log.Printf("tts error: %v", err)
			}
		}
		fmt.Println("\n" + strings.Repeat("=", 20) + "\n")
	}
}

func nextInput(ctx context.Context, reader *bufio.Scanner, voice *speech.GoogleProvider, listen bool) (string, bool) {
	if listen && voice != nil {
		fmt.Println("Nói gì đó...")
		text, err := voice.Recognize(ctx)
		if err != nil {
			log.Printf("stt error: %v", err)
			return "", true
		}
		if text != "" {
			fmt.Printf("Bạn đã nói: %s\n", text)
		}
		return strings.TrimSpace(text), true
	}

	fmt.Print("Bạn: ")
	if !reader.Scan() {
		return "", false
	}
	return strings.TrimSpace(reader.Text()), true
}
