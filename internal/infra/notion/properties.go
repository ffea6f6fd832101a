package notion

// Builders for page property payloads. Writes use loosely-typed maps since
// callers may merge arbitrary caller-supplied properties into the same
// payload.

// TitleProperty builds a title property payload.
func TitleProperty(text string) map[string]any {
	return map[string]any{
		"title": []any{
			map[string]any{"text": map[string]any{"content": text}},
		},
	}
}

// StatusProperty builds a status property payload.
func StatusProperty(name string) map[string]any {
	return map[string]any{"status": map[string]any{"name": name}}
}

// SelectProperty builds a select property payload.
func SelectProperty(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

// DateProperty builds a date property payload from an ISO 8601 start.
func DateProperty(start string) map[string]any {
	return map[string]any{"date": map[string]any{"start": start}}
}

// PeopleProperty builds a people property payload.
func PeopleProperty(userIDs ...string) map[string]any {
	people := make([]any, 0, len(userIDs))
	for _, id := range userIDs {
		people = append(people, map[string]any{"id": id})
	}
	return map[string]any{"people": people}
}
