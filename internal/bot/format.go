package bot

import (
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/rickgao/polysquad/internal/model"
)

// eventPageURL is the venue's public event page, used for deep links
// in automated messages.
const eventPageURL = "https://polymarket.com/event/"

// FormatActivity renders an activity event as a chat message body.
// Automated messages are rendered as trusted markup by clients, so
// every venue-sourced string is HTML-escaped here; nothing
// user-authored is ever interpolated.
func FormatActivity(a model.Activity, username string) string {
	if username == "" {
		username = "A trader"
	}

	var b strings.Builder

	b.WriteString(glyphFor(a))
	b.WriteString(" <strong>")
	b.WriteString(html.EscapeString(username))
	b.WriteString("</strong> ")
	b.WriteString(actionFor(a))
	fmt.Fprintf(&b, " $%.2f on %s", a.UsdcSize, html.EscapeString(a.Outcome))

	// Price is optional: older feed versions omit it.
	if a.Type == model.ActivityTrade && a.Price > 0 {
		fmt.Fprintf(&b, " at %d¢", int(math.Round(a.Price*100)))
	}

	fmt.Fprintf(&b, ` in <a href="%s%s" target="_blank">%s</a>`,
		eventPageURL,
		html.EscapeString(a.Slug),
		html.EscapeString(a.Title),
	)

	return b.String()
}

// glyphFor selects the emoji by event type and side.
func glyphFor(a model.Activity) string {
	if a.Type == model.ActivityTrade {
		if a.Side == model.SideBuy {
			return "📈"
		}
		return "📉"
	}
	return "💰"
}

// actionFor selects the verb by event type and side.
func actionFor(a model.Activity) string {
	if a.Type == model.ActivityTrade {
		if a.Side == model.SideBuy {
			return "buys"
		}
		return "sells"
	}
	return "redeems"
}
