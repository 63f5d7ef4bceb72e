package handlers

import "github.com/gorilla/mux"

// API groups the handlers mounted under the authenticated /api/v1 router.
type API struct {
	Challenges    *ChallengeHandler
	Friends       *FriendHandler
	Users         *UserHandler
	Activities    *ActivityHandler
	Notifications *NotificationHandler
}

func (a API) Register(protected *mux.Router) {
	protected.HandleFunc("/user", a.Users.GetProfile).Methods("GET")
	protected.HandleFunc("/users/search", a.Users.SearchUsers).Methods("GET")
	protected.HandleFunc("/users/{id}/stats", a.Users.GetUserStats).Methods("GET")

	protected.HandleFunc("/challenges", a.Challenges.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenges", a.Challenges.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/join", a.Challenges.JoinChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/join", a.Challenges.LeaveChallenge).Methods("DELETE")
	protected.HandleFunc("/challenges/{id}/progress", a.Challenges.UpdateProgress).Methods("POST")

	protected.HandleFunc("/friends", a.Friends.GetFriends).Methods("GET")
	protected.HandleFunc("/friends/{friendId}", a.Friends.RemoveFriend).Methods("DELETE")
	protected.HandleFunc("/friends/requests", a.Friends.SendRequest).Methods("POST")
	protected.HandleFunc("/friends/requests/incoming", a.Friends.GetIncoming).Methods("GET")
	protected.HandleFunc("/friends/requests/outgoing", a.Friends.GetOutgoing).Methods("GET")
	protected.HandleFunc("/friends/requests/outgoing/{username}", a.Friends.CancelRequest).Methods("DELETE")
	protected.HandleFunc("/friends/requests/{id}/accept", a.Friends.AcceptRequest).Methods("POST")
	protected.HandleFunc("/friends/requests/{id}/decline", a.Friends.DeclineRequest).Methods("POST")

	protected.HandleFunc("/activities", a.Activities.GetActivities).Methods("GET")

	protected.HandleFunc("/notifications/register-device", a.Notifications.RegisterDevice).Methods("POST")
}
