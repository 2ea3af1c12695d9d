package model

import (
	"time"
)

/*

UserProfile is a data model for a social user as stored remotely

Id: primary key, use to identify a user
Name: display name, can be changed, doesn't need to be unique
AvatarUrl: user's icon URL
Following: ids of users this user follows, order irrelevant
LastSeen: time of the user's last activity, drives the active-users retrieval

*/
type UserProfile struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarUrl string    `json:"avatarUrl"`
	Following []string  `json:"following"`
	LastSeen  time.Time `json:"lastSeen"`
}

func (u UserProfile) GetID() string        { return u.Id }
func (u UserProfile) GetName() string      { return u.Name }
func (u UserProfile) GetAvatarURL() string { return u.AvatarUrl }
