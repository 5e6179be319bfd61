// Copyright (c) 2026 AegisLabs.
// Please see LICENSE for details.

package aegis

import (
	"encoding/json"
	"fmt"
	"time"
)

// Account is a minimal public account record.
type Account struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Friend is one entry of the friends list.
type Friend struct {
	AccountID string    `json:"accountId"`
	Status    string    `json:"status"`
	Direction string    `json:"direction"`
	Favorite  bool      `json:"favorite"`
	Created   time.Time `json:"created"`
}

// StatsPayload is an account's raw statistics window.
type StatsPayload struct {
	AccountID string           `json:"accountId"`
	StartTime int64            `json:"startTime"`
	EndTime   int64            `json:"endTime"`
	Stats     map[string]int64 `json:"stats"`
}

// EventWindow is one playable window of an event/tournament.
type EventWindow struct {
	EventID       string    `json:"eventId"`
	EventWindowID string    `json:"eventWindowId"`
	BeginTime     time.Time `json:"beginTime"`
	EndTime       time.Time `json:"endTime"`
}

// resourceTag selects the decoder for a resource payload. The mapping is
// a small closed set: no reflection, no runtime type registration.
type resourceTag string

const (
	tagAccount      resourceTag = "account"
	tagAccountList  resourceTag = "account-list"
	tagFriendList   resourceTag = "friend-list"
	tagStats        resourceTag = "stats"
	tagEventWindows resourceTag = "event-windows"
)

var resourceDecoders = map[resourceTag]func([]byte) (interface{}, error){
	tagAccount: func(data []byte) (interface{}, error) {
		var account Account
		if err := json.Unmarshal(data, &account); err != nil {
			return nil, err
		}
		return &account, nil
	},
	tagAccountList: func(data []byte) (interface{}, error) {
		var accounts []Account
		if err := json.Unmarshal(data, &accounts); err != nil {
			return nil, err
		}
		return accounts, nil
	},
	tagFriendList: func(data []byte) (interface{}, error) {
		var friends []Friend
		if err := json.Unmarshal(data, &friends); err != nil {
			return nil, err
		}
		return friends, nil
	},
	tagStats: func(data []byte) (interface{}, error) {
		var stats StatsPayload
		if err := json.Unmarshal(data, &stats); err != nil {
			return nil, err
		}
		return &stats, nil
	},
	tagEventWindows: func(data []byte) (interface{}, error) {
		var download struct {
			EventWindows []EventWindow `json:"eventWindows"`
		}
		if err := json.Unmarshal(data, &download); err != nil {
			return nil, err
		}
		return download.EventWindows, nil
	},
}

// decodeResource decodes a payload by its resource tag.
func decodeResource(tag resourceTag, data []byte) (interface{}, error) {
	decoder, ok := resourceDecoders[tag]
	if !ok {
		return nil, fmt.Errorf("no decoder registered for resource %q", tag)
	}
	return decoder(data)
}
