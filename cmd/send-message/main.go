package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DevRickLin/inbox-autopilot/internal/data"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	appID := os.Getenv("FEISHU_APP_ID")
	appSecret := os.Getenv("FEISHU_APP_SECRET")

	if appID == "" || appSecret == "" {
		fmt.Println("Error: FEISHU_APP_ID and FEISHU_APP_SECRET must be set")
		os.Exit(1)
	}

	if len(os.Args) < 3 {
		fmt.Println("Usage: send-message <chat_id> <message>")
		os.Exit(1)
	}

	chatID := os.Args[1]
	message := os.Args[2]

	chat := data.NewFeishuRepo(appID, appSecret, os.Getenv("FEISHU_SELF_ID"))
	if err := chat.SendText(context.Background(), chatID, message); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Message sent successfully!")
}
