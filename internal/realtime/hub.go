package realtime

import "log"

// Hub routes frames to the clients currently joined to each room. A client
// can be in several rooms at once (the admin room plus any number of chat
// rooms), so membership lives on the hub rather than on the client.
type Hub struct {
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool

	Register   chan *Client
	Unregister chan *Client
	Join       chan Membership
	Leave      chan Membership
	Broadcast  chan RoomFrame

	roomOpened chan string
	roomClosed chan string
}

type Membership struct {
	Client *Client
	Room   string
}

type RoomFrame struct {
	Room  string
	Frame Frame
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Join:       make(chan Membership),
		Leave:      make(chan Membership),
		Broadcast:  make(chan RoomFrame, 64),
		roomOpened: make(chan string, 16),
		roomClosed: make(chan string, 16),
	}
}

// RoomOpened signals the first client joining a room; RoomClosed the last
// one leaving. The gateway uses these to start and stop Redis subscriptions.
func (h *Hub) RoomOpened() <-chan string {
	return h.roomOpened
}

func (h *Hub) RoomClosed() <-chan string {
	return h.roomClosed
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			incConnections()

		case client := <-h.Unregister:
			h.drop(client)

		case membership := <-h.Join:
			if !h.clients[membership.Client] {
				continue
			}
			clients, ok := h.rooms[membership.Room]
			if !ok {
				clients = make(map[*Client]bool)
				h.rooms[membership.Room] = clients
				setRooms(len(h.rooms))
				select {
				case h.roomOpened <- membership.Room:
				default:
					log.Printf("hub: room opened signal dropped for %s, redis subscription will not start", membership.Room)
				}
			}
			clients[membership.Client] = true

		case membership := <-h.Leave:
			h.leave(membership.Client, membership.Room)

		case rf := <-h.Broadcast:
			clients, ok := h.rooms[rf.Room]
			if !ok {
				continue
			}
			delivered := 0
			for client := range clients {
				select {
				case client.Send <- rf.Frame:
					delivered++
				default:
					// Slow subscriber: drop it rather than stall the room.
					h.drop(client)
				}
			}
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	for room := range h.rooms {
		h.leave(client, room)
	}
	client.stop()
	decConnections()
}

func (h *Hub) leave(client *Client, room string) {
	clients, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.rooms, room)
		setRooms(len(h.rooms))
		select {
		case h.roomClosed <- room:
		default:
			log.Printf("hub: room closed signal dropped for %s, redis subscription will leak", room)
		}
	}
}
