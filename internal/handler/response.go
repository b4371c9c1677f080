package handler

import (
	"net/http"
	"time"

	"github.com/recruitflow/inbox-server-go/internal/httputil"
	"github.com/recruitflow/inbox-server-go/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// conversationView decorates the stored row with the derived breach fact.
type conversationView struct {
	*model.Conversation
	SlaBreached bool `json:"slaBreached"`
}

func viewConversation(conv *model.Conversation) conversationView {
	return conversationView{
		Conversation: conv,
		SlaBreached:  conv.SlaBreached(time.Now()),
	}
}

func viewConversations(convs []model.Conversation) []conversationView {
	now := time.Now()
	views := make([]conversationView, len(convs))
	for i := range convs {
		views[i] = conversationView{
			Conversation: &convs[i],
			SlaBreached:  convs[i].SlaBreached(now),
		}
	}
	return views
}
