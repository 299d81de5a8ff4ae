package dispatcher

import (
	"net/http"
	"time"

	"account-dispatcher/dispatcher/domain"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // painel interno, qualquer origem
	},
}

type liveFrame struct {
	At       time.Time            `json:"at"`
	Accounts []domain.AccountLoad `json:"accounts"`
}

// LiveHandler empurra pelo websocket a carga atual das contas a cada intervalo.
// O primeiro quadro sai logo após o upgrade.
func LiveHandler(snapshot func() []domain.AccountLoad, interval time.Duration, log *logrus.Entry) http.Handler {
	if interval <= 0 {
		interval = 1 * time.Second
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		defer conn.Close()

		// descarta o que o cliente mandar; serve só para perceber o fechamento
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			if err := conn.WriteJSON(liveFrame{At: time.Now().UTC(), Accounts: snapshot()}); err != nil {
				log.WithError(err).Debug("websocket write error")
				return
			}
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-t.C:
			}
		}
	})
}
