package imapclient

// Create sends a CREATE command.
func (c *AuthenticatedClient) Create(mailbox string) *Command {
	cmd := &Command{}
	enc := c.c.beginCommand("CREATE", cmd)
	enc.SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox))
	enc.end()
	return cmd
}

// Delete sends a DELETE command.
func (c *AuthenticatedClient) Delete(mailbox string) *Command {
	cmd := &Command{}
	enc := c.c.beginCommand("DELETE", cmd)
	enc.SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox))
	enc.end()
	return cmd
}

// Rename sends a RENAME command.
func (c *AuthenticatedClient) Rename(mailbox, newName string) *Command {
	quirks := c.c.quirkProfile()
	cmd := &Command{}
	enc := c.c.beginCommand("RENAME", cmd)
	enc.SP().Mailbox(quirks.NormalizeMailbox(mailbox)).SP().Mailbox(quirks.NormalizeMailbox(newName))
	enc.end()
	return cmd
}

// Subscribe sends a SUBSCRIBE command.
func (c *AuthenticatedClient) Subscribe(mailbox string) *Command {
	cmd := &Command{}
	enc := c.c.beginCommand("SUBSCRIBE", cmd)
	enc.SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox))
	enc.end()
	return cmd
}

// Unsubscribe sends an UNSUBSCRIBE command.
func (c *AuthenticatedClient) Unsubscribe(mailbox string) *Command {
	cmd := &Command{}
	enc := c.c.beginCommand("UNSUBSCRIBE", cmd)
	enc.SP().Mailbox(c.c.quirkProfile().NormalizeMailbox(mailbox))
	enc.end()
	return cmd
}
