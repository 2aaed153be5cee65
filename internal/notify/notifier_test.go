package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatMessage(t *testing.T) {
	change := PriceChange{
		Name:     "Mechanical Keyboard",
		URL:      "https://amazon.de/dp/B01ABC",
		NewPrice: "39,99 €",
		OldPrice: "49,99 €",
	}

	msg := FormatMessage(change)

	require.Equal(t,
		"The product price has changed:\n"+
			"[Mechanical Keyboard](https://amazon.de/dp/B01ABC)\n"+
			"**New price:** 39,99 €\n"+
			"**Previous price:** 49,99 €",
		msg)
}

func TestFormatMessage_BaselinePrevious(t *testing.T) {
	change := PriceChange{
		Name:     "Headphones",
		URL:      "https://amazon.de/dp/B02XYZ",
		NewPrice: "19,99 €",
		OldPrice: "999,99 €",
	}

	msg := FormatMessage(change)
	require.Contains(t, msg, "**New price:** 19,99 €")
	require.Contains(t, msg, "**Previous price:** 999,99 €")
}

func TestNopNotifier(t *testing.T) {
	require.NoError(t, NopNotifier{}.Notify(context.Background(), 1, PriceChange{}))
}
