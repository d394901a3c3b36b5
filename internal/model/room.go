package model

// Room is a static catalog entry.
type Room struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity" yaml:"capacity"`
}

// DefaultRooms is the built-in catalog used when no rooms file is configured.
var DefaultRooms = []Room{
	{ID: "room-1", Name: "Classroom 1", Capacity: 30},
	{ID: "room-2", Name: "Classroom 2", Capacity: 25},
	{ID: "room-3", Name: "Classroom 3", Capacity: 40},
	{ID: "room-4", Name: "Classroom 4", Capacity: 35},
	{ID: "room-5", Name: "Classroom 5", Capacity: 20},
	{ID: "room-6", Name: "Classroom 6", Capacity: 45},
}

// FindRoom looks a room up by id.
func FindRoom(rooms []Room, id string) (Room, bool) {
	for _, r := range rooms {
		if r.ID == id {
			return r, true
		}
	}
	return Room{}, false
}

// RoomName returns the display name for id, or id itself when unknown.
func RoomName(rooms []Room, id string) string {
	if r, ok := FindRoom(rooms, id); ok {
		return r.Name
	}
	return id
}
