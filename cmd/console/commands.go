package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const helpText = `Commands:
• give ITEM QTY [MAXDUR DAMAGE] - put items in your holdings
• stage ITEM QTY [MAXDUR DAMAGE] - offer items to the trader
• unstage N - take back the item in slot N
• total - price what is staged
• sell - sell staged items (repeat to confirm large sales)
• sell close - sell and close the session
• sellall - sell every held item in the current category
• filter CATEGORY - choose a category (all for everything)
• prices - the trader's prices for the category
• compare [ITEM...] - compare prices across traders
• open / close - reopen or close the session
• stats - your account
• copy - copy the last output to the clipboard
• /help - this help
• Ctrl+C - quit`

// money renders an amount as $1,234.50
func money(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return "$" + humanize.FormatFloat("#,###.##", f)
}

// parseStake reads ITEM QTY [MAXDUR DAMAGE]
func parseStake(args []string) (Stake, error) {
	if len(args) != 2 && len(args) != 4 {
		return Stake{}, fmt.Errorf("usage: ITEM QTY [MAXDUR DAMAGE]")
	}
	s := Stake{Type: strings.ToUpper(args[0])}
	nums := make([]int, 0, 3)
	for _, a := range args[1:] {
		n, err := strconv.Atoi(a)
		if err != nil || n < 0 {
			return Stake{}, fmt.Errorf("%q is not a whole number", a)
		}
		nums = append(nums, n)
	}
	s.Quantity = nums[0]
	if s.Quantity == 0 {
		return Stake{}, fmt.Errorf("quantity must be positive")
	}
	if len(nums) == 3 {
		s.MaxDurability, s.Damage = nums[1], nums[2]
		if s.Damage > s.MaxDurability {
			return Stake{}, fmt.Errorf("damage cannot exceed max durability")
		}
	}
	return s, nil
}

func describeStake(s Stake) string {
	out := fmt.Sprintf("%d × %s", s.Quantity, s.Type)
	if s.MaxDurability > 0 {
		out += fmt.Sprintf(" (%d/%d)", s.MaxDurability-s.Damage, s.MaxDurability)
	}
	return out
}

func describeQuote(q *Quote) []string {
	lines := make([]string, 0, len(q.Lines)+2)
	for _, l := range q.Lines {
		lines = append(lines, fmt.Sprintf("  %s @ %s = %s", describeStake(l.Stake), money(l.UnitPrice), money(l.Value)))
	}
	for _, s := range q.Excluded {
		lines = append(lines, fmt.Sprintf("  %s (not bought here)", describeStake(s)))
	}
	lines = append(lines, fmt.Sprintf("Total: %s for %d items", money(q.Total), q.Count))
	return lines
}

func describeResult(r *SettleResult, now time.Time) []string {
	if r.Outcome == "confirmation_required" {
		return []string{
			r.Message,
			fmt.Sprintf("Sell again within %s to confirm %s.", strings.TrimSpace(humanize.RelTime(now, r.Deadline, "", "")), money(r.Quote.Total)),
		}
	}
	out := []string{r.Message}
	return append(out, fmt.Sprintf("Sold %d items for %s.", r.Quote.Count, money(r.Quote.Total)))
}

func describePlayer(p *PlayerView, now time.Time) []string {
	lines := []string{
		fmt.Sprintf("Sold today: %s in %s", money(p.DailySold), humanize.Comma(int64(p.DailyTransactions))+" sales"),
		fmt.Sprintf("Remaining today: %s", money(p.Remaining)),
		fmt.Sprintf("Lifetime: %s in %s", money(p.LifetimeSold), humanize.Comma(int64(p.LifetimeTransactions))+" sales"),
	}
	if p.BestSale.IsPositive() {
		lines = append(lines, "Best sale: "+money(p.BestSale))
	}
	if !p.LastSell.IsZero() {
		lines = append(lines, "Last sale: "+humanize.RelTime(p.LastSell, now, "ago", "from now"))
	}
	return lines
}

// runCommand executes one console command against npcID's session and
// returns the lines to show.
func runCommand(api *API, npcID, input string, now time.Time) ([]string, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		return nil, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "help":
		return strings.Split(helpText, "\n"), nil

	case "give":
		s, err := parseStake(args)
		if err != nil {
			return nil, err
		}
		if err := api.Give(s); err != nil {
			return nil, err
		}
		return []string{"You now hold " + describeStake(s) + " more."}, nil

	case "stage":
		s, err := parseStake(args)
		if err != nil {
			return nil, err
		}
		q, err := api.Stage(s)
		if err != nil {
			return nil, err
		}
		return append([]string{"Staged " + describeStake(s) + "."}, describeQuote(q)...), nil

	case "unstage":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: unstage N")
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("%q is not a slot number", args[0])
		}
		q, err := api.Unstage(n)
		if err != nil {
			return nil, err
		}
		return append([]string{fmt.Sprintf("Took back slot %d.", n)}, describeQuote(q)...), nil

	case "total":
		q, err := api.Total()
		if err != nil {
			return nil, err
		}
		return describeQuote(q), nil

	case "sell":
		closeAfter := len(args) == 1 && strings.EqualFold(args[0], "close")
		r, err := api.Settle(closeAfter)
		if err != nil {
			return nil, err
		}
		return describeResult(r, now), nil

	case "sellall":
		r, err := api.SellCategory()
		if err != nil {
			return nil, err
		}
		return describeResult(r, now), nil

	case "filter":
		if len(args) != 1 {
			return nil, fmt.Errorf("usage: filter CATEGORY")
		}
		f, err := api.Filter(args[0])
		if err != nil {
			return nil, err
		}
		return []string{"Category: " + f}, nil

	case "prices":
		lines, err := api.Prices()
		if err != nil {
			return nil, err
		}
		if len(lines) == 0 {
			return []string{"This trader buys nothing in this category."}, nil
		}
		out := make([]string, 0, len(lines))
		for _, l := range lines {
			out = append(out, fmt.Sprintf("  %-16s %s", l.Item, money(l.Price)))
		}
		return out, nil

	case "compare":
		cmps, err := api.Compare(args)
		if err != nil {
			return nil, err
		}
		var out []string
		for _, c := range cmps {
			if len(c.Offers) == 0 {
				out = append(out, c.Item+": nobody buys this")
				continue
			}
			best := c.Offers[0]
			out = append(out, fmt.Sprintf("%s: best %s at %s (%d traders)", c.Item, money(best.Price), best.NPCID, len(c.Offers)))
		}
		return out, nil

	case "open":
		in, err := api.Interact(npcID)
		if err != nil {
			return nil, err
		}
		if in.Session == nil {
			return []string{in.Greeting}, nil
		}
		return []string{"Session opened with " + in.NPCID + "."}, nil

	case "close":
		if err := api.Close(); err != nil {
			return nil, err
		}
		return []string{"Session closed. Staged items were returned."}, nil

	case "stats":
		p, err := api.Player()
		if err != nil {
			return nil, err
		}
		return describePlayer(p, now), nil

	default:
		return nil, fmt.Errorf("unknown command %q, try /help", verb)
	}
}
