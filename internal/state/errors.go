package state

import "github.com/rcourtman/insightctl/internal/apierror"

func notFoundInsight(id string) error { return apierror.NotFound("insight %q not found", id) }
func notFoundAction(id string) error  { return apierror.NotFound("action %q not found", id) }
