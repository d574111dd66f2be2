package handlers

import "fmt"

const maxRoomIDLength = 128

// validateRoomId はルームIDのバリデーションを行います
// ルームIDが空、または長すぎる場合はエラーを返します
func validateRoomId(roomId string) error {
	id := normalizeID(roomId)
	if id == "" {
		return fmt.Errorf("roomId required")
	}
	if len(id) > maxRoomIDLength {
		return fmt.Errorf("roomId too long")
	}
	return nil
}
