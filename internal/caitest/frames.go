package caitest

// TurnFrame builds a turn frame with one candidate. A non-final candidate
// carries is_final false.
func TurnFrame(requestID, chatID, turnID, authorID, text string, final bool) map[string]any {
	return map[string]any{
		"command":    "update_turn",
		"request_id": requestID,
		"turn": map[string]any{
			"turn_key": map[string]any{"chat_id": chatID, "turn_id": turnID},
			"author":   map[string]any{"author_id": authorID},
			"candidates": []any{
				map[string]any{
					"candidate_id": turnID + "-c0",
					"raw_content":  text,
					"is_final":     final,
				},
			},
			"primary_candidate_id": turnID + "-c0",
		},
	}
}

// ChatFrame acknowledges a create_chat command.
func ChatFrame(requestID, chatID, characterID string) map[string]any {
	return map[string]any{
		"command":    "create_chat_response",
		"request_id": requestID,
		"chat": map[string]any{
			"chat_id":      chatID,
			"character_id": characterID,
			"type":         "TYPE_ONE_ON_ONE",
		},
	}
}

// ErrorFrame is a neo_error frame with the given comment.
func ErrorFrame(requestID, comment string) map[string]any {
	return map[string]any{
		"command":    "neo_error",
		"request_id": requestID,
		"comment":    comment,
	}
}

// Reply streams text as a bot reply: one partial frame per prefix of chunks,
// then the final frame. The human echo is emitted first when humanID is set.
func Reply(requestID, chatID, turnID, characterID, humanID string, chunks ...string) []any {
	var frames []any
	if humanID != "" {
		frames = append(frames, TurnFrame(requestID, chatID, turnID+"-h", humanID, "", true))
	}
	text := ""
	for i, chunk := range chunks {
		text += chunk
		frames = append(frames, TurnFrame(requestID, chatID, turnID, characterID, text, i == len(chunks)-1))
	}
	return frames
}
