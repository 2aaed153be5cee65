package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/pricewatch-bot/pricewatch/internal/fetch"
	"github.com/pricewatch-bot/pricewatch/internal/store"
)

const helpText = `Available commands:
/start - Start the bot
/add <URL> - Track an Amazon product URL
/list - Show your tracked products
/checkprice <URL> - Check the current price of a product
/remove <number> - Stop tracking a product by its /list number
/history <URL> - Show the price history of a product
/help - Show this message`

// Bot is the Telegram command front-end over the store and fetcher. Commands
// issued without an argument put the chat into a pending state and the next
// plain message is consumed as that argument.
type Bot struct {
	api     *tgbotapi.BotAPI
	store   store.Store
	fetcher fetch.Fetcher
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[int64]string // chat id -> command awaiting an argument
}

func New(api *tgbotapi.BotAPI, st store.Store, fetcher fetch.Fetcher, logger *zap.Logger) *Bot {
	return &Bot{
		api:     api,
		store:   st,
		fetcher: fetcher,
		logger:  logger.Named("bot"),
		pending: make(map[int64]string),
	}
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handlePendingInput(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.reply(chatID, "Hi, I am your price tracker bot! Use /add <URL> to track an Amazon product and /list to see your products.")
	case "help":
		b.reply(chatID, helpText)
	case "add":
		if args == "" {
			b.awaitInput(chatID, "add", "Please send the Amazon product URL you want to track.")
			return
		}
		b.addProduct(ctx, chatID, args)
	case "list":
		b.listProducts(ctx, chatID)
	case "checkprice":
		if args == "" {
			b.awaitInput(chatID, "checkprice", "Please send the product URL you want to check.")
			return
		}
		b.checkPrice(ctx, chatID, args)
	case "remove":
		if args == "" {
			b.awaitInput(chatID, "remove", "Please send the number of the product to remove. Use /list to see the numbers.")
			return
		}
		b.removeProduct(ctx, chatID, args)
	case "history":
		if args == "" {
			b.awaitInput(chatID, "history", "Please send the product URL whose history you want to see.")
			return
		}
		b.showHistory(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help to see what I can do.")
	}
}

// awaitInput records that the chat's next plain message belongs to command.
func (b *Bot) awaitInput(chatID int64, command, prompt string) {
	b.mu.Lock()
	b.pending[chatID] = command
	b.mu.Unlock()
	b.reply(chatID, prompt)
}

func (b *Bot) handlePendingInput(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	b.mu.Lock()
	command, ok := b.pending[chatID]
	delete(b.pending, chatID)
	b.mu.Unlock()

	if !ok {
		return
	}

	args := strings.TrimSpace(msg.Text)
	switch command {
	case "add":
		b.addProduct(ctx, chatID, args)
	case "checkprice":
		b.checkPrice(ctx, chatID, args)
	case "remove":
		b.removeProduct(ctx, chatID, args)
	case "history":
		b.showHistory(ctx, chatID, args)
	}
}

func (b *Bot) addProduct(ctx context.Context, chatID int64, url string) {
	if !IsValidAmazonURL(url) {
		b.reply(chatID, "That does not look like a valid Amazon URL.")
		return
	}

	name, price, err := b.fetcher.FetchProduct(ctx, url)
	if err != nil {
		b.logger.Warn("add: fetch failed", zap.String("url", url), zap.Error(err))
		b.reply(chatID, "I could not fetch that product page right now, please try again later.")
		return
	}

	if err := b.store.AddUser(ctx, chatID); err != nil {
		b.logger.Error("add: failed to store user", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, "Something went wrong while saving the product.")
		return
	}

	p := store.Product{UserID: chatID, URL: url, Name: name, Price: price}
	if _, err := b.store.AddProduct(ctx, &p); err != nil {
		b.logger.Error("add: failed to store product", zap.String("url", url), zap.Error(err))
		b.reply(chatID, "Something went wrong while saving the product.")
		return
	}

	b.reply(chatID, fmt.Sprintf("Product added: %s - %s", name, price))
}

func (b *Bot) listProducts(ctx context.Context, chatID int64) {
	products, err := b.store.ProductsByUser(ctx, chatID)
	if err != nil {
		b.logger.Error("list: failed to load products", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, "Something went wrong while loading your products.")
		return
	}
	if len(products) == 0 {
		b.reply(chatID, "You are not tracking any products. Use /add <URL> to add one.")
		return
	}
	b.replyMarkdown(chatID, formatProductList(products))
}

func (b *Bot) checkPrice(ctx context.Context, chatID int64, url string) {
	b.reply(chatID, "Checking the price, please wait...")

	_, price, err := b.fetcher.FetchProduct(ctx, url)
	if err != nil {
		b.logger.Warn("checkprice: fetch failed", zap.String("url", url), zap.Error(err))
		b.reply(chatID, "I could not fetch that product page right now, please try again later.")
		return
	}
	b.reply(chatID, fmt.Sprintf("The product price is: %s", price))
}

func (b *Bot) removeProduct(ctx context.Context, chatID int64, args string) {
	index, err := strconv.Atoi(args)
	if err != nil {
		b.reply(chatID, "Please send the number of the product to remove. Use /list to see the numbers.")
		return
	}

	products, err := b.store.ProductsByUser(ctx, chatID)
	if err != nil {
		b.logger.Error("remove: failed to load products", zap.Int64("chat_id", chatID), zap.Error(err))
		b.reply(chatID, "Something went wrong while loading your products.")
		return
	}
	if len(products) == 0 {
		b.reply(chatID, "You are not tracking any products. Use /add <URL> to add one.")
		return
	}
	if index < 1 || index > len(products) {
		b.reply(chatID, "That product number is not valid. Use /list to see the numbers.")
		return
	}

	p := products[index-1]
	if err := b.store.RemoveProduct(ctx, chatID, p.URL); err != nil {
		b.logger.Error("remove: failed to delete product", zap.String("url", p.URL), zap.Error(err))
		b.reply(chatID, "Something went wrong while removing the product.")
		return
	}
	b.reply(chatID, fmt.Sprintf("%q is no longer tracked.", p.Name))
}

func (b *Bot) showHistory(ctx context.Context, chatID int64, url string) {
	entries, err := b.store.PriceHistory(ctx, chatID, url)
	if err != nil {
		b.logger.Error("history: failed to load history", zap.String("url", url), zap.Error(err))
		b.reply(chatID, "Something went wrong while loading the history.")
		return
	}
	if len(entries) == 0 {
		b.reply(chatID, "No price history for that URL yet.")
		return
	}
	b.reply(chatID, formatHistory(entries))
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
