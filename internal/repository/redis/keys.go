package redis

import "fmt"

const ns = "cineseat:v1"

func KeyShowSummary(showID int64) string {
	return fmt.Sprintf("%s:show:%d:summary", ns, showID)
}

func KeyShowAvailability(showID int64) string {
	return fmt.Sprintf("%s:show:%d:availability", ns, showID)
}

func KeyShowSeatMap(showID int64) string {
	return fmt.Sprintf("%s:show:%d:seatmap", ns, showID)
}

func ChannelShowsChanged() string {
	return ns + ":shows:changed"
}
