package session

import (
	"errors"
	"fmt"
)

const (
	MsgConfigMissing = "Configuration data is missing."
	MsgNoWallet      = "PLEASE INSTALL A WEB3 WALLET LIKE RABBY"
	MsgConnectFailed = "Failed to connect to the blockchain."
	MsgItemsFailed   = "Could not load data from contract."
)

var (
	// ErrActionsDisabled is returned by actions that need a contract when
	// none is configured.
	ErrActionsDisabled = errors.New("actions disabled")
	// ErrNotConnected is returned when no account is connected.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyPolling is returned when an item already has an active poll.
	ErrAlreadyPolling = errors.New("item is already being polled")
	// ErrInvalidItem is returned for item ids that are not decimal integers.
	ErrInvalidItem = errors.New("invalid item id")
)

func openingMessage(nft, id string) string {
	return fmt.Sprintf("OPENING %s #%s...", nft, id)
}

func openedMessage(nft, id string) string {
	return fmt.Sprintf("%s #%s OPENED SUCCESSFULLY. WAITING FOR REWARD....", nft, id)
}

func openFailedMessage(nft, id string) string {
	return fmt.Sprintf("FAILED TO OPEN %s #%s.", nft, id)
}
