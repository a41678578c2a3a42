package graph

import "mailtriage/internal/model"

type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type messagePage struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphMessage struct {
	ID          string `json:"id"`
	Subject     string `json:"subject"`
	BodyPreview string `json:"bodyPreview"`
	From        struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

func (m graphMessage) toModel() model.Message {
	return model.Message{
		ID:          m.ID,
		Subject:     m.Subject,
		From:        m.From.EmailAddress.Address,
		BodyPreview: m.BodyPreview,
	}
}

type folderPage struct {
	Value    []graphFolder `json:"value"`
	NextLink string        `json:"@odata.nextLink"`
}

type graphFolder struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type createFolderRequest struct {
	DisplayName string `json:"displayName"`
}

type moveRequest struct {
	DestinationID string `json:"destinationId"`
}

type todoListPage struct {
	Value []struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"value"`
}

type taskBody struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type createTaskRequest struct {
	Title       string           `json:"title"`
	Body        taskBody         `json:"body"`
	DueDateTime dateTimeTimeZone `json:"dueDateTime"`
}

type idResponse struct {
	ID string `json:"id"`
}
