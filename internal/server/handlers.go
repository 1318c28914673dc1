package server

import (
	"net/http"

	"github.com/Tyrowin/roomchat/internal/broadcast"
	"github.com/Tyrowin/roomchat/internal/protocol"
	"github.com/Tyrowin/roomchat/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// handleWebSocket upgrades the request, registers a new connection id with
// the coordinator and starts the client's pumps.
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Info("WebSocket upgrade failed", zap.String("addr", c.Request.RemoteAddr), zap.Error(err))
		return
	}

	id := uuid.NewString()
	client := newClient(id, conn, s.hub, c.Request.RemoteAddr, s.cfg, s.logger)

	// queued before Connect so it is the first frame the client reads
	if err := client.Send(broadcast.Event{
		Name:    broadcast.EventWelcome,
		Payload: protocol.Welcome{ConnectionID: id},
	}); err != nil {
		s.logger.Warn("Welcome not queued", zap.String("connectionId", id), zap.Error(err))
	}

	sess, err := s.coord.Connect(id, client)
	if err != nil {
		s.logger.Warn("Rejecting connection", zap.String("connectionId", id), zap.Error(err))
		s.reject(conn, websocket.CloseTryAgainLater)
		return
	}
	client.session = sess

	if !s.hub.register(client) {
		sess.Close()
		s.reject(conn, websocket.CloseGoingAway)
	}
}

func (s *Server) reject(conn *websocket.Conn, code int) {
	msg := websocket.FormatCloseMessage(code, "server shutting down")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	if err := conn.Close(); err != nil && !isExpectedCloseError(err) {
		s.logger.Debug("Error closing rejected connection", zap.Error(err))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "RoomChat server is running!")
}

type roomsResponse struct {
	Rooms []session.RoomInfo `json:"rooms"`
}

func (s *Server) handleRooms(c *gin.Context) {
	c.JSON(http.StatusOK, roomsResponse{Rooms: s.coord.Rooms()})
}

type statsResponse struct {
	Rooms   int `json:"rooms"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
	Clients int `json:"clients"`
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.coord.Stats()
	c.JSON(http.StatusOK, statsResponse{
		Rooms:   stats.Rooms,
		Online:  stats.Online,
		Offline: stats.Offline,
		Clients: s.hub.Len(),
	})
}

// handleTestPage serves a small browser client for trying rooms by hand.
func (s *Server) handleTestPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(testPageHTML))
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>RoomChat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #layout { display: flex; gap: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            width: 480px;
            padding: 10px;
            overflow-y: scroll;
            background-color: #f9f9f9;
        }
        #side { width: 200px; }
        #side ul { border: 1px solid #ccc; min-height: 60px; padding: 5px 20px; }
        input[type="text"] { width: 200px; padding: 5px; margin-right: 10px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>RoomChat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="userInput" placeholder="Display name">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="roomInput" placeholder="Room name" disabled>
        <button id="joinButton" onclick="joinRoom()" disabled>Join</button>
        <button id="leaveButton" onclick="leaveRoom()" disabled>Leave</button>
    </div>
    <div style="margin-top: 10px">
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="layout">
        <div id="messages"></div>
        <div id="side">
            <strong>Rooms</strong>
            <ul id="rooms"></ul>
            <strong>Users</strong>
            <ul id="users"></ul>
        </div>
    </div>

    <script>
        let ws = null;
        let me = '';
        let currentRoom = '';
        let rooms = [];
        let users = [];
        const $ = (id) => document.getElementById(id);

        function addMessage(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            $('messages').appendChild(el);
            $('messages').scrollTop = $('messages').scrollHeight;
        }

        function renderList(id, items) {
            const ul = $(id);
            ul.innerHTML = '';
            items.forEach((item) => {
                const li = document.createElement('li');
                li.textContent = item === me ? item + ' (you)' : item;
                ul.appendChild(li);
            });
        }

        function send(frame) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(frame));
            }
        }

        function updateStatus(connected) {
            $('status').textContent = connected ? 'Connected as ' + me : 'Disconnected';
            $('status').className = 'status ' + (connected ? 'connected' : 'disconnected');
            ['roomInput', 'joinButton', 'leaveButton', 'messageInput', 'sendButton'].forEach((id) => {
                $(id).disabled = !connected;
            });
            $('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        const handlers = {
            welcome: (p) => { me = p.connectionId; updateStatus(true); send({type: 'getRooms'}); },
            message: (p) => addMessage(p.user + ': ' + p.text, 'green'),
            systemMessage: (p) => addMessage(p),
            roomList: (p) => { rooms = p; renderList('rooms', rooms); },
            roomCreated: (p) => { rooms.push(p); renderList('rooms', rooms); },
            roomRemoved: (p) => { rooms = rooms.filter((r) => r !== p); renderList('rooms', rooms); },
            userList: (p) => { users = p; renderList('users', users); },
            userJoined: (p) => { if (!users.includes(p)) users.push(p); renderList('users', users); },
            userLeft: (p) => { users = users.filter((u) => u !== p); renderList('users', users); },
        };

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                const handler = handlers[frame.event];
                if (handler) {
                    handler(frame.payload);
                }
            };

            ws.onclose = function() {
                addMessage('Connection closed');
                currentRoom = '';
                users = [];
                renderList('users', users);
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function joinRoom() {
            const room = $('roomInput').value.trim();
            if (!room) return;
            currentRoom = room;
            send({type: 'joinRoom', room: room});
            send({type: 'getUsers', room: room});
        }

        function leaveRoom() {
            if (!currentRoom) return;
            send({type: 'leaveRoom', room: currentRoom});
            currentRoom = '';
            users = [];
            renderList('users', users);
        }

        function sendMessage() {
            const text = $('messageInput').value.trim();
            if (!text || !currentRoom) return;
            send({type: 'sendMessage', room: currentRoom, user: $('userInput').value.trim(), text: text});
            $('messageInput').value = '';
        }

        $('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
