package mqtt

import "fmt"

func TopicTerminalUtterance(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/utterance", prefix)
}

func TopicTerminalSkills(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/skills", prefix)
}

func TopicTerminalOnline(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/online", prefix)
}

func TopicTerminalHeartbeat(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/heartbeat", prefix)
}

func TopicTerminalResult(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/result/+", prefix)
}

func TopicTerminalCalls(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/calls/+", prefix)
}

func TopicTerminalInvoke(prefix string) string {
	return fmt.Sprintf("%s/terminal/+/invoke/+", prefix)
}

func TopicUtterance(prefix, terminalID string) string {
	return fmt.Sprintf("%s/terminal/%s/utterance", prefix, terminalID)
}

func TopicCalls(prefix, terminalID, requestID string) string {
	return fmt.Sprintf("%s/terminal/%s/calls/%s", prefix, terminalID, requestID)
}

func TopicInvoke(prefix, terminalID, requestID string) string {
	return fmt.Sprintf("%s/terminal/%s/invoke/%s", prefix, terminalID, requestID)
}

func TopicResult(prefix, terminalID, requestID string) string {
	return fmt.Sprintf("%s/terminal/%s/result/%s", prefix, terminalID, requestID)
}

func TopicSkills(prefix, terminalID string) string {
	return fmt.Sprintf("%s/terminal/%s/skills", prefix, terminalID)
}

func TopicOnline(prefix, terminalID string) string {
	return fmt.Sprintf("%s/terminal/%s/online", prefix, terminalID)
}

func TopicHeartbeat(prefix, terminalID string) string {
	return fmt.Sprintf("%s/terminal/%s/heartbeat", prefix, terminalID)
}
