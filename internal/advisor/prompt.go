package advisor

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/marketsentry/internal/models"
)

// Template selects the analyst persona and trade horizon.
type Template string

const (
	TemplateShortHorizon Template = "short_horizon"
	TemplateSwing        Template = "swing"
)

// Valid reports whether t names a known template.
func (t Template) Valid() bool {
	return t == TemplateShortHorizon || t == TemplateSwing
}

const systemPrompt = `You are a senior commodities strategist writing alerts for a human trader.
You never place orders. You answer with a single JSON object and nothing else:
{
  "action": "BUY" | "SELL" | "WAIT",
  "risk_level": "LOW" | "MEDIUM" | "HIGH",
  "driver": "the #1 market driver right now, one sentence",
  "reasoning": "macro analysis and technical confirmation, at most 5 short sentences"
}`

var horizonBriefs = map[Template]string{
	TemplateShortHorizon: "Horizon: intraday to one session. Favor fast momentum and news reactions.",
	TemplateSwing:        "Horizon: several sessions. Favor the EMA trend and ignore intraday noise unless it breaks structure.",
}

const userTemplate = `SYSTEM ALERT TRIGGER: {reason}
(If this is a regular check, do a standard analysis. If it is a PRICE SPIKE or BREAKING NEWS, focus on explaining the emergency.)

{horizon}

GLOBAL NEWS FEED ({asset}):
{news}

TECHNICAL DATA:
- Price: {price}
- EMA trend: {ema_cross}
- MACD trend: {trend}
- RSI: {rsi}
- Volatility (ATR): {atr}
- Support / resistance: {support} / {resistance}

CALCULATED LIMITS:
{limits}

TASK:
1. Filter the news and identify the #1 market driver.
2. Cross-check that driver against the technical data.
3. Use the calculated limits for risk management and grade the setup risk.`

func fmtNum(v float64) string {
	if !models.Defined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func formatNews(news []models.NewsItem) string {
	if len(news) == 0 {
		return "- (no headlines available)"
	}
	lines := make([]string, len(news))
	for i, n := range news {
		if n.Published.IsZero() {
			lines[i] = "- " + n.Title
		} else {
			lines[i] = fmt.Sprintf("- %s (%s)", n.Title, n.Published.UTC().Format("Mon, 02 Jan 15:04 MST"))
		}
	}
	return strings.Join(lines, "\n")
}

func formatLimits(r models.RiskLevels) string {
	if !r.Available {
		return "- unavailable (ATR undefined)"
	}
	return fmt.Sprintf("- BUY setup: stop $%.2f, target $%.2f\n- SELL setup: stop $%.2f, target $%.2f",
		r.Long.Stop, r.Long.Target, r.Short.Stop, r.Short.Target)
}

// BuildPrompt renders the prompt for in.
func BuildPrompt(in Input) Prompt {
	tmpl := in.Template
	if !tmpl.Valid() {
		tmpl = TemplateShortHorizon
	}
	f := in.Features
	user := strings.NewReplacer(
		"{reason}", in.Reason,
		"{horizon}", horizonBriefs[tmpl],
		"{asset}", in.Asset,
		"{news}", formatNews(in.News),
		"{price}", "$"+fmtNum(f.Price),
		"{ema_cross}", in.EMACross,
		"{trend}", string(f.Trend),
		"{rsi}", fmtNum(f.RSI),
		"{atr}", fmtNum(f.ATR),
		"{support}", fmtNum(f.Support),
		"{resistance}", fmtNum(f.Resistance),
		"{limits}", formatLimits(in.Risk),
	).Replace(userTemplate)

	return Prompt{System: systemPrompt, User: user}
}
