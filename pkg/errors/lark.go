package errors

import (
	"fmt"
	"time"

	"github.com/go-lark/lark"
	"moff.io/moff-connect/pkg/log"
)

type larkReporter struct {
	bot   *lark.Bot
	title string
	delay *rateLimiter
}

// NewLarkReporter 初始化飞书机器人上报错误至指定的webhook，同一出错位置在silent时间内只上报一次.
func NewLarkReporter(webhook, title string, silent time.Duration) {
	if webhook == "" {
		log.Warn("empty lark webhook found, skipping lark reporter initialization.")
		return
	}
	if title == "" {
		title = "moff-connect error"
	}
	RegisterReporter(&larkReporter{
		bot:   lark.NewNotificationBot(webhook),
		title: title,
		delay: newRateLimiter(silent),
	})
	log.Info("Lark error reporter initialized.")
}

func (r *larkReporter) Report(err error) {
	if err == nil {
		return
	}
	stacks := callers()
	limited, stats := r.delay.StackBasedRateLimited(stacks.reportKey())
	if limited {
		return
	}
	pb := lark.NewPostBuilder()
	pb.Title(r.title)
	pb.TextTag(fmt.Sprintf("Last Report: %v", formatReportTime(stats.lastReportTime)), 1, true)
	pb.TextTag(fmt.Sprintf("\nError Count Since Last Report: %v", stats.occurCountSinceLastReport), 1, true)
	pb.TextTag(fmt.Sprintf("\nMessage: %v", err.Error()), 1, true)
	pb.TextTag("\nStacks:", 1, true)
	for _, s := range stacks.fullStack() {
		pb.TextTag(fmt.Sprintf("\n    %s", s), 1, true)
	}
	if _, err := r.bot.PostNotificationV2(lark.OutcomingMessage{
		MsgType: "post",
		Content: lark.MessageContent{
			Post: pb.Render(),
		},
	}); err != nil {
		log.Error(WithStack(err))
	}
}

func formatReportTime(time *time.Time) string {
	if time == nil {
		return "none"
	}
	return time.Format("2006.01.02 15:04")
}
